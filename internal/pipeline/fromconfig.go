/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/assets"
	"synthbox/internal/bbox"
	"synthbox/internal/config"
	"synthbox/internal/domain"
	"synthbox/internal/geom"
	applog "synthbox/internal/log"
	"synthbox/internal/placement"
	"synthbox/internal/render"
	"synthbox/internal/scene"
	"synthbox/internal/storage"
)

// object count range used for a custom model when the config keeps the stock count
const (
	customMinObjects = 1
	customMaxObjects = 10
)

func vec(v config.Vec3) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

func radians(v config.Vec3) r3.Vec {
	k := math.Pi / 180
	return r3.Vec{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// CameraFromConfig builds the camera. fov_y wins over focal length.
func CameraFromConfig(cfg config.Config) geom.Camera {
	w, h := cfg.Scene.Width(), cfg.Scene.Height()
	fov := cfg.Camera.FOVYDeg * math.Pi / 180
	if fov <= 0 {
		fov = geom.FOVFromFocalLength(cfg.Camera.FocalLength, cfg.Camera.SensorWidth, w, h)
	}
	return geom.Camera{
		Position: vec(cfg.Camera.Position),
		Rotation: radians(cfg.Camera.Rotation),
		FOVY:     fov,
		Width:    w,
		Height:   h,
		Near:     cfg.Camera.ClipStart,
		Far:      cfg.Camera.ClipEnd,
	}
}

func unitColor(c [3]float64) domain.Color { return domain.ColorFromUnit(c[0], c[1], c[2]) }

// CatalogFromConfig returns the primitive classes, or the single class of the
// configured model, renamed and recoloured from the classes section.
func CatalogFromConfig(cfg config.Config) (scene.Catalog, error) {
	cat := scene.Primitives()
	if p := strings.TrimSpace(cfg.Paths.Model); p != "" {
		g, err := assets.LoadModel(p)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		cat = scene.FromModel(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)), g)
	}
	colors := make([]domain.Color, 0, len(cfg.Classes.Colours))
	for _, c := range cfg.Classes.Colours {
		colors = append(colors, unitColor(c))
	}
	return cat.WithNames(cfg.Classes.Names, colors), nil
}

// upright reports whether objects get the quarter turn about X. OBJ exports
// are Y-up, so a custom model stands up unless the config says otherwise.
func upright(cfg config.Config) bool {
	if u := cfg.Generation.Upright; u != nil {
		return *u
	}
	return strings.TrimSpace(cfg.Paths.Model) != ""
}

// SceneOptions maps the generation, scene and light sections onto composer options.
func SceneOptions(cfg config.Config, textures []string) (scene.Options, error) {
	g := cfg.Generation
	policy, err := scene.ParsePolicy(g.Policy)
	if err != nil {
		return scene.Options{}, err
	}
	o := scene.Options{
		MinObjects:   g.MinObjects,
		MaxObjects:   g.MaxObjects,
		MaxAttempts:  g.MaxAttempts,
		Margin:       g.Margin,
		EdgeBuffer:   g.EdgeBuffer,
		TargetSize:   g.TargetSize,
		ScaleMin:     g.ScaleVariation[0],
		ScaleMax:     g.ScaleVariation[1],
		RandomTilt:   g.RandomTilt,
		Upright:      upright(cfg),
		Policy:       policy,
		ShrinkFactor: g.ShrinkFactor,
		ShrinkSteps:  g.ShrinkSteps,
		Ground:       placement.Area{HalfX: cfg.Scene.GroundHalfX, HalfY: cfg.Scene.GroundHalfY},
		LightStyle:   cfg.Light.Style,
		Key: scene.KeyLight{
			Position:       vec(cfg.Light.Position),
			Rotation:       radians(cfg.Light.Rotation),
			EnergyMin:      cfg.Light.EnergyMin,
			EnergyMax:      cfg.Light.EnergyMax,
			LocationJitter: vec(cfg.Light.LocationJitter),
			RotationJitter: vec(cfg.Light.RotationJitter),
		},
		Textures: textures,
		Base:     unitColor(cfg.Scene.BaseColour),
	}
	d := config.Defaults().Generation
	if strings.TrimSpace(cfg.Paths.Model) != "" && g.MinObjects == d.MinObjects && g.MaxObjects == d.MaxObjects {
		o.MinObjects, o.MaxObjects = customMinObjects, customMaxObjects
	}
	return o, nil
}

// FromConfig assembles a Generator. The returned close func releases the catalog.
// secret is the catalog password from the keyring and may be empty.
func FromConfig(ctx context.Context, cfg config.Config, secret string) (*Generator, func() error, error) {
	l := applog.WithComponent("pipeline")
	noop := func() error { return nil }

	cat, err := CatalogFromConfig(cfg)
	if err != nil {
		return nil, noop, err
	}
	textures, err := assets.FindTextures(cfg.Paths.Textures)
	if err != nil {
		return nil, noop, err
	}
	opts, err := SceneOptions(cfg, textures)
	if err != nil {
		return nil, noop, err
	}
	comp, err := scene.NewComposer(cat, CameraFromConfig(cfg), opts)
	if err != nil {
		return nil, noop, err
	}
	rd, err := render.New(render.Config{Kind: cfg.Renderer.Kind, Command: cfg.Renderer.Command, Timeout: cfg.Renderer.TimeoutS})
	if err != nil {
		return nil, noop, err
	}
	src, err := bbox.ParseSource(cfg.Generation.BBoxSource)
	if err != nil {
		return nil, noop, err
	}
	snap, err := config.Marshal(cfg)
	if err != nil {
		return nil, noop, err
	}
	g := &Generator{
		Seed:      cfg.Generation.Seed,
		Composer:  comp,
		Renderer:  rd,
		Extractor: bbox.Extractor{Source: src},
		Layout:    storage.NewLayout(cfg.Output.Dir, cfg.Output.ImagesDir, cfg.Output.LabelsDir, cfg.Output.VisDir),
		Classes:   cat.Classes(),
		Snapshot:  snap,
		Visualise: cfg.Output.Visualise,
		Log:       l,
	}
	if cfg.Catalog.Disabled {
		return g, noop, nil
	}
	dsn := cfg.Catalog.DSN
	if strings.TrimSpace(dsn) == "" {
		dsn = storage.CatalogPath(g.Layout)
	}
	if dsn, err = storage.WithPassword(dsn, secret); err != nil {
		return nil, noop, err
	}
	c, err := storage.OpenCatalog(ctx, dsn)
	if err != nil {
		return nil, noop, err
	}
	g.Catalog = c
	l.Debug("generator ready", slog.Int("classes", len(g.Classes)), slog.Int("textures", len(textures)),
		slog.String("renderer", cfg.Renderer.Kind), slog.String("bbox", src.String()))
	return g, c.Close, nil
}
