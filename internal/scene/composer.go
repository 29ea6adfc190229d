/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene assembles one image's Scene: class choice, scale, pose,
// collision-free placement and lighting.
package scene

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/domain"
	"synthbox/internal/geom"
	"synthbox/internal/placement"
)

// Rand is the random source a composer draws from. *rand.Rand satisfies it.
type Rand interface {
	placement.Source
	Intn(n int) int
}

// Policy decides what happens when an object cannot be placed.
type Policy string

const (
	PolicySkip   Policy = "skip"   // drop the object, keep the image
	PolicyAbort  Policy = "abort"  // fail the image
	PolicyShrink Policy = "shrink" // retry smaller, then skip
)

// ParsePolicy accepts skip, abort and shrink; empty means skip.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyAbort, PolicyShrink:
		return p, nil
	default:
		return "", fmt.Errorf("unknown placement policy %q", s)
	}
}

// Options tune composition. Zero fields fall back to Defaults.
type Options struct {
	MinObjects   int
	MaxObjects   int
	MaxAttempts  int
	Margin       float64
	EdgeBuffer   float64
	TargetSize   float64 // longest edge after scaling; 0 keeps model units
	ScaleMin     float64
	ScaleMax     float64
	RandomTilt   bool // random roll/pitch in addition to yaw
	Upright      bool // quarter turn about X first, so Y-up models stand on the ground
	Policy       Policy
	ShrinkFactor float64
	ShrinkSteps  int
	Ground       placement.Area // zero derives it from the camera footprint
	LightStyle   string         // empty picks a random style per image
	Key          KeyLight
	Textures     []string
	Base         domain.Color
}

// Defaults mirrors the stock generator: seven objects, 100 attempts.
func Defaults() Options {
	return Options{
		MinObjects:   7,
		MaxObjects:   7,
		MaxAttempts:  100,
		Margin:       0.5,
		EdgeBuffer:   2,
		ScaleMin:     1,
		ScaleMax:     1.5,
		Policy:       PolicySkip,
		ShrinkFactor: 0.8,
		ShrinkSteps:  3,
		Key: KeyLight{
			Position:       r3.Vec{Z: 20},
			EnergyMin:      100,
			EnergyMax:      1000,
			LocationJitter: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1},
			RotationJitter: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1},
		},
		Base: domain.ColorFromUnit(0.5, 0.5, 0.5),
	}
}

// Composer is stateless between calls; every Compose builds a new Scene.
type Composer struct {
	Catalog Catalog
	Camera  geom.Camera
	Opts    Options
}

// NewComposer validates the catalog and camera up front so degenerate
// geometry never reaches placement.
func NewComposer(cat Catalog, cam geom.Camera, opts Options) (*Composer, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	d := Defaults()
	if opts.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must be >= 0, got %d", opts.MaxAttempts)
	}
	if opts.MinObjects <= 0 {
		opts.MinObjects = d.MinObjects
	}
	if opts.MaxObjects < opts.MinObjects {
		opts.MaxObjects = opts.MinObjects
	}
	if opts.ScaleMin <= 0 {
		opts.ScaleMin = d.ScaleMin
	}
	if opts.ScaleMax < opts.ScaleMin {
		opts.ScaleMax = opts.ScaleMin
	}
	if opts.Policy == "" {
		opts.Policy = PolicySkip
	}
	if opts.ShrinkFactor <= 0 || opts.ShrinkFactor >= 1 {
		opts.ShrinkFactor = d.ShrinkFactor
	}
	if opts.Ground == (placement.Area{}) {
		hx, hy := cam.GroundFootprint()
		opts.Ground = placement.Area{HalfX: hx, HalfY: hy}
	}
	return &Composer{Catalog: cat, Camera: cam, Opts: opts}, nil
}

// Compose builds the scene for image index using rng for every random choice.
func (c *Composer) Compose(index int, rng Rand) (*domain.Scene, error) {
	o := c.Opts
	s := &domain.Scene{
		Index:  index,
		Ground: o.Ground,
		Camera: c.Camera,
		Base:   o.Base,
	}
	solver := placement.NewSolver(rng, o.Margin)
	area := o.Ground.Inset(o.EdgeBuffer)

	n := o.MinObjects
	if o.MaxObjects > o.MinObjects {
		n += rng.Intn(o.MaxObjects - o.MinObjects + 1)
	}
	for i := 0; i < n; i++ {
		e := c.Catalog[rng.Intn(len(c.Catalog))]
		obj, err := c.place(i, e, rng, solver, area, s.Footprints())
		if errors.Is(err, placement.ErrAreaExhausted) && o.Policy != PolicyAbort {
			s.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("image %d object %d (%s): %w", index, i, e.Class.Name, err)
		}
		s.Objects = append(s.Objects, obj)
	}

	rig, err := BuildRig(o.LightStyle, o.Key, rng)
	if err != nil {
		return nil, err
	}
	s.Rig = rig
	if len(o.Textures) > 0 {
		s.Texture = o.Textures[rng.Intn(len(o.Textures))]
	}
	return s, nil
}

func (c *Composer) place(id int, e Entry, rng Rand, solver *placement.Solver, area placement.Area, existing []placement.Footprint) (domain.SceneObject, error) {
	o := c.Opts
	base := 1.0
	if o.TargetSize > 0 {
		base = o.TargetSize / e.Geometry.Bounds.MaxDim()
	}
	k := base * uniform(rng, o.ScaleMin, o.ScaleMax)
	rot := r3.Vec{Z: uniform(rng, 0, 2*math.Pi)}
	switch {
	case o.RandomTilt:
		rot.X = uniform(rng, -math.Pi, math.Pi)
		rot.Y = uniform(rng, -math.Pi, math.Pi)
	case o.Upright:
		rot.X = math.Pi / 2
	}

	steps := 0
	if o.Policy == PolicyShrink {
		steps = o.ShrinkSteps
	}
	var lastErr error
	for try := 0; try <= steps; try++ {
		pose := geom.Pose{Rotation: rot, Scale: r3.Vec{X: k, Y: k, Z: k}}
		radius, lift := footprint(pose, e.Geometry.Bounds)
		center, err := solver.FindPosition(placement.Request{
			Radius:      radius,
			Existing:    existing,
			Area:        area,
			MaxAttempts: o.MaxAttempts,
		})
		if err == nil {
			pose.Position = r3.Vec{X: center.X, Y: center.Y, Z: lift}
			return domain.SceneObject{
				ID:       id,
				Class:    e.Class,
				Pose:     pose,
				Geometry: e.Geometry,
				Radius:   radius,
				Color:    e.Class.Color,
			}, nil
		}
		lastErr = err
		if !errors.Is(err, placement.ErrAreaExhausted) {
			break
		}
		k *= o.ShrinkFactor
	}
	return domain.SceneObject{}, lastErr
}

// footprint returns the ground-plane circumradius of the posed box around
// its origin and the height that rests its lowest corner on z=0.
func footprint(p geom.Pose, b geom.Box3) (radius, lift float64) {
	lowest := math.Inf(1)
	for _, v := range p.Corners(b) {
		radius = math.Max(radius, math.Hypot(v.X, v.Y))
		lowest = math.Min(lowest, v.Z)
	}
	return radius, -lowest
}
