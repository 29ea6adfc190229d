/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package bbox

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/domain"
	"synthbox/internal/geom"
)

// Source selects which points of an object are projected.
type Source int

const (
	// SourceOBB projects the eight oriented bounding box corners.
	SourceOBB Source = iota
	// SourceVertices projects every mesh vertex, falling back to the OBB
	// for geometry without vertices.
	SourceVertices
)

func (s Source) String() string {
	switch s {
	case SourceVertices:
		return "vertices"
	default:
		return "obb"
	}
}

// ParseSource accepts "obb" and "vertices".
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "obb":
		return SourceOBB, nil
	case "vertices":
		return SourceVertices, nil
	default:
		return SourceOBB, fmt.Errorf("unknown bbox source %q", s)
	}
}

// Extractor computes labels; the zero value uses OBB corners.
type Extractor struct {
	Source Source
}

// Rect returns the clipped pixel rectangle of obj, or false when no point is
// in front of the camera or the clipped rectangle is empty.
func (e Extractor) Rect(obj domain.SceneObject, cam geom.Camera) (PixelRect, bool) {
	var pts []r3.Vec
	if e.Source == SourceVertices {
		pts = obj.WorldVertices()
	}
	if pts == nil {
		c := obj.WorldCorners()
		pts = c[:]
	}

	r := PixelRect{XMin: math.Inf(1), YMin: math.Inf(1), XMax: math.Inf(-1), YMax: math.Inf(-1)}
	seen := 0
	for _, p := range pts {
		px, ok := cam.Project(p)
		if !ok {
			continue
		}
		seen++
		r.XMin = math.Min(r.XMin, px.X)
		r.YMin = math.Min(r.YMin, px.Y)
		r.XMax = math.Max(r.XMax, px.X)
		r.YMax = math.Max(r.YMax, px.Y)
	}
	if seen == 0 {
		return PixelRect{}, false
	}
	r = r.Clip(cam.Width, cam.Height)
	if r.Empty() {
		return PixelRect{}, false
	}
	return r, true
}

// Extract returns the normalized label for obj, or false when it is off camera.
func (e Extractor) Extract(obj domain.SceneObject, cam geom.Camera) (Label, bool) {
	r, ok := e.Rect(obj, cam)
	if !ok {
		return Label{}, false
	}
	return r.Normalize(obj.Class.Index, cam.Width, cam.Height), true
}

// ExtractAll labels every visible object in scene order.
func (e Extractor) ExtractAll(s *domain.Scene) []Label {
	out := make([]Label, 0, len(s.Objects))
	for _, o := range s.Objects {
		if l, ok := e.Extract(o, s.Camera); ok {
			out = append(out, l)
		}
	}
	return out
}
