/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box3 is an axis-aligned box in local space.
type Box3 struct {
	Min r3.Vec `json:"min"`
	Max r3.Vec `json:"max"`
}

// Centered returns a box of the given half-extents around the origin.
func Centered(half r3.Vec) Box3 {
	return Box3{Min: r3.Scale(-1, half), Max: half}
}

// BoundsOf returns the tightest box around pts. ok is false for an empty slice.
func BoundsOf(pts []r3.Vec) (b Box3, ok bool) {
	if len(pts) == 0 {
		return Box3{}, false
	}
	b = Box3{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b, true
}

// Size returns the edge lengths.
func (b Box3) Size() r3.Vec { return r3.Sub(b.Max, b.Min) }

// Center returns the box midpoint.
func (b Box3) Center() r3.Vec { return r3.Scale(0.5, r3.Add(b.Min, b.Max)) }

// Volume is zero or negative for degenerate boxes.
func (b Box3) Volume() float64 {
	s := b.Size()
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return 0
	}
	return s.X * s.Y * s.Z
}

// MaxDim returns the longest edge.
func (b Box3) MaxDim() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Corners enumerates the eight corners; bit 0 selects X, bit 1 Y, bit 2 Z.
func (b Box3) Corners() [8]r3.Vec {
	var out [8]r3.Vec
	for i := range out {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		out[i] = c
	}
	return out
}
