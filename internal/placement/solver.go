/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package placement finds collision-free ground positions by rejection sampling.
//
// Each attempt is checked against every existing footprint (O(n) per attempt).
// Scenes hold tens of objects, so no spatial index is kept.
package placement

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrAreaExhausted means no free position was found within the attempt budget.
	ErrAreaExhausted = errors.New("placement area exhausted")
	// ErrInvalidRequest is returned for negative radii or extents.
	ErrInvalidRequest = errors.New("invalid placement request")
)

// Source supplies uniform samples in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Area is a rectangle centered at the origin.
type Area struct {
	HalfX float64 `json:"half_x" yaml:"half_x"`
	HalfY float64 `json:"half_y" yaml:"half_y"`
}

// Inset shrinks the area by d on every side, never below zero.
func (a Area) Inset(d float64) Area {
	return Area{HalfX: max(a.HalfX-d, 0), HalfY: max(a.HalfY-d, 0)}
}

// Contains reports whether p lies inside the closed rectangle.
func (a Area) Contains(p r2.Vec) bool {
	return p.X >= -a.HalfX && p.X <= a.HalfX && p.Y >= -a.HalfY && p.Y <= a.HalfY
}

// Footprint is the circle an object occupies on the ground.
type Footprint struct {
	Center r2.Vec  `json:"center"`
	Radius float64 `json:"radius"`
}

// Request describes one placement query.
type Request struct {
	Radius      float64
	Existing    []Footprint
	Area        Area
	MaxAttempts int
}

// Solver samples candidate centers from Rand. Rand is borrowed; the solver
// never reseeds it.
type Solver struct {
	Margin float64
	Rand   Source
}

// NewSolver returns a solver with the given safety margin.
func NewSolver(rnd Source, margin float64) *Solver {
	return &Solver{Margin: margin, Rand: rnd}
}

// FindPosition returns the first sampled center that keeps at least
// Radius+other.Radius+Margin to every existing footprint.
func (s *Solver) FindPosition(req Request) (r2.Vec, error) {
	if s == nil || s.Rand == nil {
		return r2.Vec{}, fmt.Errorf("%w: no random source", ErrInvalidRequest)
	}
	if req.Radius < 0 || req.Area.HalfX < 0 || req.Area.HalfY < 0 || s.Margin < 0 {
		return r2.Vec{}, fmt.Errorf("%w: radius=%.3f area=%+v margin=%.3f", ErrInvalidRequest, req.Radius, req.Area, s.Margin)
	}
	for attempt := 0; attempt < req.MaxAttempts; attempt++ {
		c := r2.Vec{
			X: (s.Rand.Float64()*2 - 1) * req.Area.HalfX,
			Y: (s.Rand.Float64()*2 - 1) * req.Area.HalfY,
		}
		if s.free(c, req.Radius, req.Existing) {
			return c, nil
		}
	}
	return r2.Vec{}, fmt.Errorf("%w: %d attempts, %d existing, radius %.3f", ErrAreaExhausted, req.MaxAttempts, len(req.Existing), req.Radius)
}

func (s *Solver) free(c r2.Vec, radius float64, existing []Footprint) bool {
	for _, o := range existing {
		if r2.Norm(r2.Sub(c, o.Center)) < radius+o.Radius+s.Margin {
			return false
		}
	}
	return true
}

// PlaceAll places radii in order, each against everything placed before it.
// It stops at the first failure and returns the footprints placed so far.
func (s *Solver) PlaceAll(radii []float64, area Area, maxAttempts int) ([]Footprint, error) {
	out := make([]Footprint, 0, len(radii))
	for i, r := range radii {
		c, err := s.FindPosition(Request{Radius: r, Existing: out, Area: area, MaxAttempts: maxAttempts})
		if err != nil {
			return out, fmt.Errorf("object %d: %w", i, err)
		}
		out = append(out, Footprint{Center: c, Radius: r})
	}
	return out, nil
}

// Overlaps reports whether a and b are closer than their radii plus margin.
func Overlaps(a, b Footprint, margin float64) bool {
	return r2.Norm(r2.Sub(a.Center, b.Center)) < a.Radius+b.Radius+margin
}

// ValidateLayout checks every pair and returns the indices of the first overlap.
func ValidateLayout(fps []Footprint, margin float64) (i, j int, ok bool) {
	for i = 0; i < len(fps); i++ {
		for j = i + 1; j < len(fps); j++ {
			if Overlaps(fps[i], fps[j], margin) {
				return i, j, false
			}
		}
	}
	return -1, -1, true
}
