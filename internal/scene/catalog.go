/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/domain"
	"synthbox/internal/geom"
)

// Entry pairs a class with the geometry instantiated for it.
type Entry struct {
	Class    domain.ClassInfo
	Geometry domain.Geometry
}

// Catalog is the set of classes a composer draws from. Class indices are
// positions in the catalog.
type Catalog []Entry

// Validate rejects empty catalogs, index gaps and degenerate geometry.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	for i, e := range c {
		if e.Class.Index != i {
			return fmt.Errorf("catalog entry %d has class index %d", i, e.Class.Index)
		}
		if err := e.Geometry.Validate(); err != nil {
			return fmt.Errorf("class %q: %w", e.Class.Name, err)
		}
	}
	return nil
}

// Classes lists the class infos in index order.
func (c Catalog) Classes() []domain.ClassInfo {
	out := make([]domain.ClassInfo, len(c))
	for i, e := range c {
		out[i] = e.Class
	}
	return out
}

// Default class colours, cycled when a catalog has more classes.
var palette = []domain.Color{
	{R: 255, A: 255},
	{G: 255, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 255, A: 255},
	{R: 255, B: 255, A: 255},
	{G: 255, B: 255, A: 255},
}

// PaletteColor returns the default colour for a class index.
func PaletteColor(i int) domain.Color { return palette[i%len(palette)] }

const segs = 16

// Primitives returns the built-in shape classes: cube, sphere, cone,
// cylinder and torus, each about two units across.
func Primitives() Catalog {
	shapes := []domain.Geometry{
		cubeGeometry(),
		sphereGeometry(1),
		coneGeometry(1, 2),
		cylinderGeometry(1, 2),
		torusGeometry(1, 0.25),
	}
	out := make(Catalog, len(shapes))
	for i, g := range shapes {
		out[i] = Entry{Class: domain.ClassInfo{Index: i, Name: g.Name, Color: PaletteColor(i)}, Geometry: g}
	}
	return out
}

// FromModel builds a single-class catalog for a custom model.
func FromModel(name string, g domain.Geometry) Catalog {
	return Catalog{{Class: domain.ClassInfo{Index: 0, Name: name, Color: PaletteColor(0)}, Geometry: g}}
}

// WithNames renames classes in order; extra names are ignored.
func (c Catalog) WithNames(names []string, colors []domain.Color) Catalog {
	out := append(Catalog(nil), c...)
	for i := range out {
		if i < len(names) && names[i] != "" {
			out[i].Class.Name = names[i]
		}
		if i < len(colors) {
			out[i].Class.Color = colors[i]
		}
	}
	return out
}

func withBounds(name string, vs []r3.Vec) domain.Geometry {
	b, _ := geom.BoundsOf(vs)
	return domain.Geometry{Name: name, Bounds: b, Vertices: vs}
}

func cubeGeometry() domain.Geometry {
	c := geom.Centered(r3.Vec{X: 1, Y: 1, Z: 1}).Corners()
	return withBounds("cube", c[:])
}

func ring(r, z float64) []r3.Vec {
	out := make([]r3.Vec, segs)
	for i := range out {
		a := 2 * math.Pi * float64(i) / segs
		out[i] = r3.Vec{X: r * math.Cos(a), Y: r * math.Sin(a), Z: z}
	}
	return out
}

func sphereGeometry(r float64) domain.Geometry {
	vs := []r3.Vec{{Z: r}, {Z: -r}}
	for k := 1; k < segs/2; k++ {
		phi := math.Pi * float64(k) / (segs / 2)
		vs = append(vs, ring(r*math.Sin(phi), r*math.Cos(phi))...)
	}
	return withBounds("sphere", vs)
}

func coneGeometry(r, h float64) domain.Geometry {
	vs := append(ring(r, -h/2), r3.Vec{Z: h / 2})
	return withBounds("cone", vs)
}

func cylinderGeometry(r, h float64) domain.Geometry {
	vs := append(ring(r, -h/2), ring(r, h/2)...)
	return withBounds("cylinder", vs)
}

func torusGeometry(major, minor float64) domain.Geometry {
	var vs []r3.Vec
	for j := 0; j < 8; j++ {
		t := 2 * math.Pi * float64(j) / 8
		vs = append(vs, ring(major+minor*math.Cos(t), minor*math.Sin(t))...)
	}
	return withBounds("torus", vs)
}
