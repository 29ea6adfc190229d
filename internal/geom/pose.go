/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom holds the world/camera math shared by placement, extraction and rendering.
//
// Conventions:
//   - World space is right-handed with +Z up; the ground plane is z=0.
//   - Rotations are Euler angles in radians applied in X, Y, Z order (X first).
//   - Cameras look along their local -Z axis with local +Y as image up.
package geom

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// Euler builds the rotation for XYZ Euler angles (radians).
func Euler(e r3.Vec) r3.Rotation {
	qx := quat.Number(r3.NewRotation(e.X, axisX))
	qy := quat.Number(r3.NewRotation(e.Y, axisY))
	qz := quat.Number(r3.NewRotation(e.Z, axisZ))
	return r3.Rotation(quat.Mul(qz, quat.Mul(qy, qx)))
}

// Inverse returns the rotation undoing r. r must be a unit rotation.
func Inverse(r r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Conj(quat.Number(r)))
}

// Pose places local geometry in the world: scale, then rotate, then translate.
type Pose struct {
	Position r3.Vec `json:"position"`
	Rotation r3.Vec `json:"rotation"`
	Scale    r3.Vec `json:"scale"`
}

// Identity returns a pose at the origin with unit scale.
func Identity() Pose { return Pose{Scale: r3.Vec{X: 1, Y: 1, Z: 1}} }

// Apply maps a local-space point into world space.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	s := r3.Vec{X: v.X * p.Scale.X, Y: v.Y * p.Scale.Y, Z: v.Z * p.Scale.Z}
	return r3.Add(p.Position, Euler(p.Rotation).Rotate(s))
}

// ApplyAll maps every point; the input slice is not modified.
func (p Pose) ApplyAll(vs []r3.Vec) []r3.Vec {
	rot := Euler(p.Rotation)
	out := make([]r3.Vec, len(vs))
	for i, v := range vs {
		s := r3.Vec{X: v.X * p.Scale.X, Y: v.Y * p.Scale.Y, Z: v.Z * p.Scale.Z}
		out[i] = r3.Add(p.Position, rot.Rotate(s))
	}
	return out
}

// Corners returns the eight world-space corners of b under this pose,
// i.e. the object's oriented bounding box.
func (p Pose) Corners(b Box3) [8]r3.Vec {
	local := b.Corners()
	rot := Euler(p.Rotation)
	var out [8]r3.Vec
	for i, v := range local {
		s := r3.Vec{X: v.X * p.Scale.X, Y: v.Y * p.Scale.Y, Z: v.Z * p.Scale.Z}
		out[i] = r3.Add(p.Position, rot.Rotate(s))
	}
	return out
}
