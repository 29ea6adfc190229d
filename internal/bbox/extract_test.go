/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package bbox

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/domain"
	"synthbox/internal/geom"
)

func cube(class int, pos r3.Vec) domain.SceneObject {
	p := geom.Identity()
	p.Position = pos
	return domain.SceneObject{
		Class:    domain.ClassInfo{Index: class, Name: "cube"},
		Pose:     p,
		Geometry: domain.Geometry{Name: "cube", Bounds: geom.Centered(r3.Vec{X: 1, Y: 1, Z: 1})},
	}
}

func topDown() geom.Camera { return geom.TopDown(50, math.Pi/3, 640, 480) }

func TestPixelRectRoundTrip(t *testing.T) {
	r := PixelRect{XMin: 100, YMin: 50, XMax: 300, YMax: 150}
	l := r.Normalize(2, 640, 480)
	require.Equal(t, 2, l.ClassIndex)
	require.InDelta(t, 0.3125, l.XCenter, 1e-12)
	require.InDelta(t, 0.2083, l.YCenter, 1e-4)
	require.InDelta(t, 0.3125, l.Width, 1e-12)
	require.InDelta(t, 0.2083, l.Height, 1e-4)

	back := l.PixelRect(640, 480)
	if diff := cmp.Diff(r, back, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCubeMatchesAnalyticExtent(t *testing.T) {
	cam := topDown()
	l, ok := Extractor{}.Extract(cube(0, r3.Vec{}), cam)
	require.True(t, ok)

	// The near face (z=+1) sits at depth 49 and bounds the projection.
	f := 1 / math.Tan(cam.FOVY/2)
	wantH := f / 49
	wantW := f / (49 * cam.Aspect())
	require.InDelta(t, 0.5, l.XCenter, 1e-9)
	require.InDelta(t, 0.5, l.YCenter, 1e-9)
	require.InDelta(t, wantW, l.Width, 1e-3)
	require.InDelta(t, wantH, l.Height, 1e-3)
	require.InDelta(t, 0.035348, l.Height, 1e-5)
	require.True(t, l.Valid())
}

func TestExtractOffFrustumReturnsNone(t *testing.T) {
	cam := topDown()
	_, ok := Extractor{}.Extract(cube(0, r3.Vec{X: 1000}), cam)
	require.False(t, ok, "cube far to the side must not be labelled")

	_, ok = Extractor{}.Extract(cube(0, r3.Vec{Z: 100}), cam)
	require.False(t, ok, "cube behind the camera must not be labelled")
}

func TestExtractStraddlingEdgeIsClipped(t *testing.T) {
	cam := topDown()
	hx, _ := cam.GroundFootprint()
	obj := cube(1, r3.Vec{X: hx, Y: 3})

	raw := PixelRect{XMin: math.Inf(1), YMin: math.Inf(1), XMax: math.Inf(-1), YMax: math.Inf(-1)}
	for _, c := range obj.WorldCorners() {
		px, ok := cam.Project(c)
		require.True(t, ok)
		raw.XMin, raw.XMax = math.Min(raw.XMin, px.X), math.Max(raw.XMax, px.X)
		raw.YMin, raw.YMax = math.Min(raw.YMin, px.Y), math.Max(raw.YMax, px.Y)
	}
	require.Greater(t, raw.XMax, 640.0, "fixture should cross the right edge")

	l, ok := Extractor{}.Extract(obj, cam)
	require.True(t, ok)
	want := raw.Clip(640, 480)
	if diff := cmp.Diff(want, l.PixelRect(640, 480), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("clipped rect mismatch (-want +got):\n%s", diff)
	}
	for _, v := range []float64{l.XCenter, l.YCenter, l.Width, l.Height} {
		require.Greater(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestExtractDropsCornersBehindCamera(t *testing.T) {
	cam := topDown()
	tall := cube(0, r3.Vec{Z: 50})
	tall.Geometry.Bounds = geom.Centered(r3.Vec{X: 1, Y: 1, Z: 10})
	r, ok := Extractor{}.Rect(tall, cam)
	require.True(t, ok)

	// Only the z=40 face remains, at depth 10.
	f := 1 / math.Tan(cam.FOVY/2)
	require.InDelta(t, 2*f/10*240, r.Height(), 1e-6)
}

func TestExtractVerticesIsTighterThanOBB(t *testing.T) {
	cam := topDown()
	obj := cube(0, r3.Vec{})
	obj.Geometry.Vertices = []r3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}

	obb, ok := Extractor{Source: SourceOBB}.Extract(obj, cam)
	require.True(t, ok)
	vtx, ok := Extractor{Source: SourceVertices}.Extract(obj, cam)
	require.True(t, ok)
	require.Less(t, vtx.Width, obb.Width)
	require.Less(t, vtx.Height, obb.Height)

	obj.Geometry.Vertices = nil
	fallback, ok := Extractor{Source: SourceVertices}.Extract(obj, cam)
	require.True(t, ok)
	require.Equal(t, obb, fallback)
}

func TestExtractAllSkipsInvisible(t *testing.T) {
	s := &domain.Scene{
		Camera: topDown(),
		Objects: []domain.SceneObject{
			cube(0, r3.Vec{X: -5}),
			cube(1, r3.Vec{X: 5000}),
			cube(2, r3.Vec{Y: 5}),
		},
	}
	labels := Extractor{}.ExtractAll(s)
	require.Len(t, labels, 2)
	require.Equal(t, 0, labels[0].ClassIndex)
	require.Equal(t, 2, labels[1].ClassIndex)
}

func TestRotatedCubeGrowsBox(t *testing.T) {
	cam := topDown()
	straight, _ := Extractor{}.Extract(cube(0, r3.Vec{}), cam)
	turned := cube(0, r3.Vec{})
	turned.Pose.Rotation = r3.Vec{Z: math.Pi / 4}
	diag, ok := Extractor{}.Extract(turned, cam)
	require.True(t, ok)
	require.InDelta(t, straight.Width*math.Sqrt2, diag.Width, 1e-9)
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource("Vertices")
	require.NoError(t, err)
	require.Equal(t, SourceVertices, s)
	_, err = ParseSource("silhouette")
	require.Error(t, err)
}
