/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package bbox derives 2D labels analytically from object geometry and the
// camera. Rendered pixels are never inspected, so boxes follow the oriented
// bounding box (or vertex set) and may be slightly loose for non-box meshes.
package bbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PixelRect is an axis-aligned rectangle in pixel space, origin top-left.
type PixelRect struct {
	XMin, YMin, XMax, YMax float64
}

// Width of the rectangle; negative when inverted.
func (r PixelRect) Width() float64 { return r.XMax - r.XMin }

// Height of the rectangle; negative when inverted.
func (r PixelRect) Height() float64 { return r.YMax - r.YMin }

// Empty reports zero or negative area.
func (r PixelRect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Clip intersects r with [0,w]×[0,h].
func (r PixelRect) Clip(w, h int) PixelRect {
	return PixelRect{
		XMin: math.Max(r.XMin, 0),
		YMin: math.Max(r.YMin, 0),
		XMax: math.Min(r.XMax, float64(w)),
		YMax: math.Min(r.YMax, float64(h)),
	}
}

// Normalize converts to center/size form relative to the image resolution.
func (r PixelRect) Normalize(class, w, h int) Label {
	fw, fh := float64(w), float64(h)
	return Label{
		ClassIndex: class,
		XCenter:    (r.XMin + r.XMax) / 2 / fw,
		YCenter:    (r.YMin + r.YMax) / 2 / fh,
		Width:      (r.XMax - r.XMin) / fw,
		Height:     (r.YMax - r.YMin) / fh,
	}
}

// Label is one normalized box: all four values in [0,1].
type Label struct {
	ClassIndex int     `json:"class"`
	XCenter    float64 `json:"x_center"`
	YCenter    float64 `json:"y_center"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// PixelRect maps the label back to pixel space.
func (l Label) PixelRect(w, h int) PixelRect {
	fw, fh := float64(w), float64(h)
	return PixelRect{
		XMin: (l.XCenter - l.Width/2) * fw,
		YMin: (l.YCenter - l.Height/2) * fh,
		XMax: (l.XCenter + l.Width/2) * fw,
		YMax: (l.YCenter + l.Height/2) * fh,
	}
}

// Valid checks the normalized ranges and a positive size.
func (l Label) Valid() bool {
	in := func(v float64) bool { return v >= 0 && v <= 1 }
	return l.ClassIndex >= 0 && in(l.XCenter) && in(l.YCenter) && in(l.Width) && in(l.Height) &&
		l.Width > 0 && l.Height > 0
}

// Area is the normalized area.
func (l Label) Area() float64 { return l.Width * l.Height }

// FormatLine renders "class xc yc w h" with six decimals.
func FormatLine(l Label) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", l.ClassIndex, l.XCenter, l.YCenter, l.Width, l.Height)
}

// ParseLine is the inverse of FormatLine; extra whitespace is tolerated.
func ParseLine(s string) (Label, error) {
	f := strings.Fields(s)
	if len(f) != 5 {
		return Label{}, fmt.Errorf("label line: want 5 fields, got %d", len(f))
	}
	cls, err := strconv.Atoi(f[0])
	if err != nil {
		return Label{}, fmt.Errorf("label class %q: %w", f[0], err)
	}
	var v [4]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(f[i+1], 64); err != nil {
			return Label{}, fmt.Errorf("label field %d %q: %w", i+1, f[i+1], err)
		}
	}
	l := Label{ClassIndex: cls, XCenter: v[0], YCenter: v[1], Width: v[2], Height: v[3]}
	if !l.Valid() {
		return Label{}, fmt.Errorf("label out of range: %q", s)
	}
	return l, nil
}
