/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const eps = 1e-9

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestProjectCenterOfFrame(t *testing.T) {
	c := TopDown(50, math.Pi/3, 640, 480)
	px, ok := c.Project(r3.Vec{})
	if !ok {
		t.Fatalf("origin should be in front of the camera")
	}
	if !near(px.X, 320, eps) || !near(px.Y, 240, eps) {
		t.Fatalf("origin projected to %v, want (320,240)", px)
	}
}

func TestProjectImageOrientation(t *testing.T) {
	c := TopDown(50, math.Pi/3, 640, 480)
	right, _ := c.Project(r3.Vec{X: 5})
	if right.X <= 320 || !near(right.Y, 240, eps) {
		t.Fatalf("+X should map right of center, got %v", right)
	}
	up, _ := c.Project(r3.Vec{Y: 5})
	if up.Y >= 240 || !near(up.X, 320, eps) {
		t.Fatalf("+Y should map above center (smaller pixel y), got %v", up)
	}
}

func TestProjectDepthSign(t *testing.T) {
	c := Camera{
		Position: r3.Vec{X: 1, Y: -2, Z: 30},
		Rotation: r3.Vec{X: 0.3, Y: -0.2, Z: 1.1},
		FOVY:     0.8,
		Width:    800,
		Height:   600,
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		p := r3.Vec{X: rng.Float64()*200 - 100, Y: rng.Float64()*200 - 100, Z: rng.Float64()*200 - 100}
		d := c.Depth(p)
		_, ok := c.Project(p)
		if d > 0 && !ok {
			t.Fatalf("point %v with depth %.4f should project", p, d)
		}
		if d <= 0 && ok {
			t.Fatalf("point %v with depth %.4f should not project", p, d)
		}
	}
}

func TestProjectRejectsCameraPlaneAndBehind(t *testing.T) {
	c := TopDown(50, math.Pi/3, 640, 480)
	if _, ok := c.Project(r3.Vec{X: 3, Y: 4, Z: 50}); ok {
		t.Fatalf("point on the camera plane must not project")
	}
	if _, ok := c.Project(r3.Vec{Z: 80}); ok {
		t.Fatalf("point behind the camera must not project")
	}
}

func TestUnprojectRoundTrip(t *testing.T) {
	c := Camera{
		Position: r3.Vec{X: -4, Y: 2, Z: 40},
		Rotation: r3.Vec{X: 0.25, Z: -0.6},
		FOVY:     math.Pi / 4,
		Width:    1920,
		Height:   1080,
	}
	for _, px := range []r2.Vec{{X: 0, Y: 0}, {X: 960, Y: 540}, {X: 1919, Y: 3}, {X: 17.5, Y: 1000}} {
		w := c.Unproject(px, 25)
		got, ok := c.Project(w)
		if !ok {
			t.Fatalf("unprojected point %v should be in front", w)
		}
		if !near(got.X, px.X, 1e-6) || !near(got.Y, px.Y, 1e-6) {
			t.Fatalf("round trip %v -> %v", px, got)
		}
		if !near(c.Depth(w), 25, 1e-9) {
			t.Fatalf("depth = %v, want 25", c.Depth(w))
		}
	}
}

func TestGroundFootprintMapsToFrameCorner(t *testing.T) {
	c := TopDown(100, FOVFromFocalLength(50, 36, 1920, 1080), 1920, 1080)
	hx, hy := c.GroundFootprint()
	px, ok := c.Project(r3.Vec{X: hx, Y: hy})
	if !ok {
		t.Fatalf("corner should project")
	}
	if !near(px.X, 1920, 1e-6) || !near(px.Y, 0, 1e-6) {
		t.Fatalf("ground corner projected to %v, want (1920,0)", px)
	}
}

func TestFOVFromFocalLength(t *testing.T) {
	got := FOVFromFocalLength(50, 36, 1920, 1080)
	want := 2 * math.Atan(20.25/100)
	if !near(got, want, 1e-12) {
		t.Fatalf("fov = %v, want %v", got, want)
	}
	if FOVFromFocalLength(0, 36, 10, 10) != 0 {
		t.Fatalf("zero focal length should yield 0")
	}
}

func TestCameraValidate(t *testing.T) {
	if err := TopDown(10, 1, 640, 480).Validate(); err != nil {
		t.Fatalf("valid camera rejected: %v", err)
	}
	bad := []Camera{
		TopDown(10, 0, 640, 480),
		TopDown(10, math.Pi, 640, 480),
		TopDown(10, 1, 0, 480),
		TopDown(10, 1, 640, -1),
	}
	for i, c := range bad {
		if err := c.Validate(); !errors.Is(err, ErrInvalidCamera) {
			t.Fatalf("case %d: want ErrInvalidCamera, got %v", i, err)
		}
	}
}
