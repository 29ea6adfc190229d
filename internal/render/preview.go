/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // texture decoding
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r2"

	"synthbox/internal/domain"
)

// Preview is a flat-shaded software renderer. Each object is drawn as the
// filled silhouette of its projected points, far to near, over the ground.
type Preview struct{}

// Render implements Renderer.
func (p *Preview) Render(ctx context.Context, s *domain.Scene, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := p.Draw(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// Draw rasterizes s in memory.
func (p *Preview) Draw(s *domain.Scene) (*image.RGBA, error) {
	cam := s.Camera
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, cam.Width, cam.Height))
	if err := drawGround(dst, s); err != nil {
		return nil, err
	}

	// Painter's order: farthest object first.
	order := make([]int, len(s.Objects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cam.Depth(s.Objects[order[a]].Pose.Position) > cam.Depth(s.Objects[order[b]].Pose.Position)
	})

	light := brightness(s.Rig)
	frame := [4]r2.Vec{{X: 0, Y: 0}, {X: float64(cam.Width), Y: 0}, {X: float64(cam.Width), Y: float64(cam.Height)}, {X: 0, Y: float64(cam.Height)}}
	for _, i := range order {
		o := s.Objects[i]
		pts := o.WorldVertices()
		if pts == nil {
			c := o.WorldCorners()
			pts = c[:]
		}
		var proj []r2.Vec
		for _, v := range pts {
			if px, ok := cam.Project(v); ok {
				proj = append(proj, px)
			}
		}
		poly := clipConvex(convexHull(proj), frame)
		if len(poly) < 3 {
			continue
		}
		fillPolygon(dst, poly, shade(o.Color, light))
	}
	return dst, nil
}

func drawGround(dst *image.RGBA, s *domain.Scene) error {
	base := s.Base
	if base.A == 0 {
		base = domain.ColorFromUnit(0.5, 0.5, 0.5)
	}
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(toRGBA(base)), image.Point{}, xdraw.Src)
	if s.Texture == "" {
		return nil
	}
	f, err := os.Open(s.Texture)
	if err != nil {
		return fmt.Errorf("open texture: %w", err)
	}
	defer func() { _ = f.Close() }()
	tex, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode texture %s: %w", s.Texture, err)
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), tex, tex.Bounds(), xdraw.Src, nil)
	return nil
}

// brightness maps rig energy to a 0.35..1 multiplier. Sun energies are in
// irradiance units and are weighted up to match area lamps.
func brightness(rig domain.LightRig) float64 {
	var e float64
	for _, l := range rig.Lights {
		if l.Kind == domain.LightSun {
			e += l.Energy * 200
			continue
		}
		e += l.Energy
	}
	if e <= 0 {
		return 0.35
	}
	return 0.35 + 0.65*(1-math.Exp(-e/800))
}

func shade(c domain.Color, k float64) color.RGBA {
	m := func(v uint8) uint8 { return uint8(math.Round(float64(v) * k)) }
	a := c.A
	if a == 0 {
		a = 255
	}
	return color.RGBA{R: m(c.R), G: m(c.G), B: m(c.B), A: a}
}

func toRGBA(c domain.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func fillPolygon(dst *image.RGBA, poly []r2.Vec, col color.RGBA) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(poly[0].X), float32(poly[0].Y))
	for _, p := range poly[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// convexHull returns the hull in counter-clockwise order (monotone chain).
func convexHull(pts []r2.Vec) []r2.Vec {
	if len(pts) < 3 {
		return pts
	}
	ps := append([]r2.Vec(nil), pts...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
	cross := func(o, a, b r2.Vec) float64 { return r2.Cross(r2.Sub(a, o), r2.Sub(b, o)) }
	hull := make([]r2.Vec, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// clipConvex clips poly against the convex window (Sutherland-Hodgman).
// The window must be given in the same winding as a positive-area polygon
// in image coordinates.
func clipConvex(poly []r2.Vec, window [4]r2.Vec) []r2.Vec {
	out := poly
	for i := range window {
		a, b := window[i], window[(i+1)%len(window)]
		edge := r2.Sub(b, a)
		inside := func(p r2.Vec) bool { return r2.Cross(edge, r2.Sub(p, a)) >= 0 }
		in := out
		out = nil
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			switch {
			case inside(cur) && inside(prev):
				out = append(out, cur)
			case inside(cur):
				out = append(out, intersect(prev, cur, a, b), cur)
			case inside(prev):
				out = append(out, intersect(prev, cur, a, b))
			}
		}
		if len(out) == 0 {
			return nil
		}
	}
	return out
}

func intersect(p, q, a, b r2.Vec) r2.Vec {
	d := r2.Sub(q, p)
	e := r2.Sub(b, a)
	t := r2.Cross(r2.Sub(a, p), e) / r2.Cross(d, e)
	return r2.Add(p, r2.Scale(t, d))
}
