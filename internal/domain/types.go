/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the per-image data model. A Scene is built fresh for every
// rendered image and discarded after its labels are written; nothing here is
// shared between images.

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/geom"
	"synthbox/internal/placement"
)

// ErrInvalidGeometry marks geometry with zero-volume local extents.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Color is an 8-bit RGBA colour.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
	A uint8 `json:"a" yaml:"a"`
}

// ColorFromUnit converts 0..1 float channels (as used in renderer configs) to Color.
func ColorFromUnit(r, g, b float64) Color {
	return Color{R: unit8(r), G: unit8(g), B: unit8(b), A: 255}
}

func unit8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// ClassInfo names one label class.
type ClassInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Geometry is the local-space shape handle of a model: its bounds and,
// when known, its vertices.
type Geometry struct {
	Name     string    `json:"name"`
	Bounds   geom.Box3 `json:"bounds"`
	Vertices []r3.Vec  `json:"-"`
}

// Validate rejects geometry that encloses no volume.
func (g Geometry) Validate() error {
	if g.Bounds.Volume() <= 0 {
		return fmt.Errorf("%w: %q has extents %+v", ErrInvalidGeometry, g.Name, g.Bounds.Size())
	}
	return nil
}

// SceneObject is one placed, labelled instance.
type SceneObject struct {
	ID       int       `json:"id"`
	Class    ClassInfo `json:"class"`
	Pose     geom.Pose `json:"pose"`
	Geometry Geometry  `json:"geometry"`
	Radius   float64   `json:"radius"` // ground footprint used for collision checks
	Color    Color     `json:"color"`
}

// Footprint returns the object's collision circle on the ground.
func (o SceneObject) Footprint() placement.Footprint {
	fp := placement.Footprint{Radius: o.Radius}
	fp.Center.X, fp.Center.Y = o.Pose.Position.X, o.Pose.Position.Y
	return fp
}

// WorldCorners returns the eight corners of the oriented bounding box.
func (o SceneObject) WorldCorners() [8]r3.Vec { return o.Pose.Corners(o.Geometry.Bounds) }

// WorldVertices transforms the geometry's vertices; nil when none are known.
func (o SceneObject) WorldVertices() []r3.Vec {
	if len(o.Geometry.Vertices) == 0 {
		return nil
	}
	return o.Pose.ApplyAll(o.Geometry.Vertices)
}

// LightKind mirrors the usual renderer lamp types.
type LightKind string

const (
	LightArea  LightKind = "area"
	LightSun   LightKind = "sun"
	LightSpot  LightKind = "spot"
	LightPoint LightKind = "point"
)

// Light is one lamp of a rig.
type Light struct {
	Name     string    `json:"name"`
	Kind     LightKind `json:"kind"`
	Position r3.Vec    `json:"position"`
	Rotation r3.Vec    `json:"rotation"`
	Energy   float64   `json:"energy"`
	Size     float64   `json:"size,omitempty"`
	SpotSize float64   `json:"spot_size,omitempty"`
}

// LightRig is the lighting setup chosen for one image.
type LightRig struct {
	Style  string  `json:"style"`
	Lights []Light `json:"lights"`
}

// TotalEnergy sums the energy of all lights.
func (r LightRig) TotalEnergy() float64 {
	var e float64
	for _, l := range r.Lights {
		e += l.Energy
	}
	return e
}

// Scene is everything needed to render and label one image.
type Scene struct {
	Index   int            `json:"index"`
	Seed    int64          `json:"seed"`
	Ground  placement.Area `json:"ground"`
	Camera  geom.Camera    `json:"camera"`
	Objects []SceneObject  `json:"objects"`
	Rig     LightRig       `json:"rig"`
	Texture string         `json:"texture,omitempty"`
	Base    Color          `json:"base_color"`
	// Skipped counts objects dropped because the placement area was exhausted.
	Skipped int `json:"skipped"`
}

// Footprints returns the collision circles of all placed objects.
func (s *Scene) Footprints() []placement.Footprint {
	out := make([]placement.Footprint, len(s.Objects))
	for i, o := range s.Objects {
		out[i] = o.Footprint()
	}
	return out
}
