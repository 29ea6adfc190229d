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
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func vecNear(a, b r3.Vec, tol float64) bool {
	return near(a.X, b.X, tol) && near(a.Y, b.Y, tol) && near(a.Z, b.Z, tol)
}

func TestEulerRightHanded(t *testing.T) {
	got := Euler(r3.Vec{Z: math.Pi / 2}).Rotate(r3.Vec{X: 1})
	if !vecNear(got, r3.Vec{Y: 1}, 1e-12) {
		t.Fatalf("Rz(90) * X = %v, want +Y", got)
	}
	got = Euler(r3.Vec{X: math.Pi / 2}).Rotate(r3.Vec{Y: 1})
	if !vecNear(got, r3.Vec{Z: 1}, 1e-12) {
		t.Fatalf("Rx(90) * Y = %v, want +Z", got)
	}
}

func TestEulerAppliesXBeforeZ(t *testing.T) {
	// X first takes +Y to +Z, which Z then leaves untouched.
	got := Euler(r3.Vec{X: math.Pi / 2, Z: math.Pi / 2}).Rotate(r3.Vec{Y: 1})
	if !vecNear(got, r3.Vec{Z: 1}, 1e-12) {
		t.Fatalf("got %v, want +Z", got)
	}
}

func TestInverseUndoesRotation(t *testing.T) {
	r := Euler(r3.Vec{X: 0.4, Y: -1.3, Z: 2.2})
	p := r3.Vec{X: 3, Y: -7, Z: 0.5}
	if got := Inverse(r).Rotate(r.Rotate(p)); !vecNear(got, p, 1e-12) {
		t.Fatalf("inverse round trip = %v, want %v", got, p)
	}
}

func TestPoseCornersMatchApply(t *testing.T) {
	p := Pose{Position: r3.Vec{X: 2, Y: 3, Z: 1}, Rotation: r3.Vec{Z: 0.7}, Scale: r3.Vec{X: 2, Y: 1, Z: 0.5}}
	b := Centered(r3.Vec{X: 1, Y: 1, Z: 1})
	corners := p.Corners(b)
	local := b.Corners()
	for i := range corners {
		if want := p.Apply(local[i]); !vecNear(corners[i], want, 1e-12) {
			t.Fatalf("corner %d: %v != %v", i, corners[i], want)
		}
	}
	all := p.ApplyAll(local[:])
	for i := range all {
		if !vecNear(all[i], corners[i], 1e-12) {
			t.Fatalf("ApplyAll[%d] mismatch", i)
		}
	}
}

func TestBoxHelpers(t *testing.T) {
	b, ok := BoundsOf([]r3.Vec{{X: 1, Y: -2, Z: 0}, {X: -1, Y: 4, Z: 3}, {X: 0, Y: 0, Z: 1}})
	if !ok {
		t.Fatalf("BoundsOf returned !ok")
	}
	if b.Min != (r3.Vec{X: -1, Y: -2, Z: 0}) || b.Max != (r3.Vec{X: 1, Y: 4, Z: 3}) {
		t.Fatalf("bounds = %+v", b)
	}
	if b.Volume() != 36 || b.MaxDim() != 6 {
		t.Fatalf("volume=%v maxdim=%v", b.Volume(), b.MaxDim())
	}
	if _, ok := BoundsOf(nil); ok {
		t.Fatalf("empty input should not be ok")
	}
	flat := Box3{Max: r3.Vec{X: 1, Y: 1}}
	if flat.Volume() != 0 {
		t.Fatalf("flat box volume = %v", flat.Volume())
	}
}
