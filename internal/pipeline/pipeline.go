/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pipeline runs the per-image generation loop: compose, render,
// extract, write, record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"synthbox/internal/bbox"
	"synthbox/internal/domain"
	"synthbox/internal/export"
	applog "synthbox/internal/log"
	"synthbox/internal/render"
	"synthbox/internal/scene"
	"synthbox/internal/storage"
)

// Generator produces a dataset into Layout. Catalog is optional.
type Generator struct {
	Seed      int64
	Composer  *scene.Composer
	Renderer  render.Renderer
	Extractor bbox.Extractor
	Layout    storage.Layout
	Catalog   *storage.Catalog
	Classes   []domain.ClassInfo
	// Snapshot is the effective config stored with the run.
	Snapshot []byte
	// Visualise writes overlays even when Options.Visualise is unset.
	Visualise bool
	Log       *slog.Logger
}

// Options for one Run. A negative StartIndex continues after the highest
// image already in the output.
type Options struct {
	Count      int
	StartIndex int
	Visualise  bool
}

// Result counts what a run produced.
type Result struct {
	Run       uuid.UUID // uuid.Nil without a catalog
	First     int
	Generated int
	Failed    int
	Labels    int
	Skipped   int
	Duration  time.Duration
}

// Run generates opts.Count images one after another. A failing image is
// logged and counted and the loop moves on; only context cancellation and
// setup errors abort the run. The partial Result is returned in both cases.
func (g *Generator) Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	l := g.Log
	if l == nil {
		l = applog.WithComponent("pipeline")
	}
	var res Result
	if g.Composer == nil || g.Renderer == nil {
		return res, errors.New("generator needs a composer and a renderer")
	}
	if opts.Count < 0 {
		return res, fmt.Errorf("image count must be >= 0, got %d", opts.Count)
	}
	if err := storage.EnsureLayout(g.Layout); err != nil {
		return res, err
	}
	first := opts.StartIndex
	if first < 0 {
		n, err := g.Layout.NextIndex()
		if err != nil {
			return res, err
		}
		first = n
	}
	res.First = first

	if g.Catalog != nil {
		run, err := g.Catalog.BeginRun(ctx, g.Snapshot, g.Seed)
		if err != nil {
			return res, err
		}
		res.Run = run
		l = applog.WithRun(l, run.String())
	}
	l.Info("generation started", slog.Int("count", opts.Count), slog.Int("first", first), slog.Int64("seed", g.Seed))

	var runErr error
	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		idx := first + i
		ictx := applog.ContextWithImage(ctx, idx)
		n, skipped, err := g.generateOne(ictx, l, res.Run, idx, opts.Visualise || g.Visualise)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			res.Failed++
			l.WarnContext(ictx, "image failed", slog.Any("err", err))
			continue
		}
		res.Generated++
		res.Labels += n
		res.Skipped += skipped
		l.DebugContext(ictx, "image done", slog.Int("labels", n), slog.Int("skipped", skipped))
	}

	if g.Catalog != nil {
		// recorded even when cancelled, so the run is not left open
		if err := g.Catalog.FinishRun(context.WithoutCancel(ctx), res.Run, res.Generated, res.Failed); err != nil {
			l.Warn("finish run failed", slog.Any("err", err))
		}
	}
	res.Duration = time.Since(start)
	l.Info("generation finished",
		slog.Int("generated", res.Generated), slog.Int("failed", res.Failed),
		slog.Int("labels", res.Labels), slog.Int("skipped", res.Skipped),
		slog.Duration("took", res.Duration))
	return res, runErr
}

// Rand returns the deterministic source for image index.
func (g *Generator) Rand(index int) *rand.Rand {
	return rand.New(rand.NewSource(g.Seed + int64(index)))
}

func (g *Generator) generateOne(ctx context.Context, l *slog.Logger, run uuid.UUID, idx int, visualise bool) (labels, skipped int, err error) {
	s, err := g.Composer.Compose(idx, g.Rand(idx))
	if err != nil {
		return 0, 0, fmt.Errorf("compose: %w", err)
	}
	s.Seed = g.Seed + int64(idx)

	imgPath := g.Layout.ImagePath(idx)
	if err := g.Renderer.Render(ctx, s, imgPath); err != nil {
		return 0, 0, fmt.Errorf("render: %w", err)
	}
	lbls := g.Extractor.ExtractAll(s)
	lblPath := g.Layout.LabelPath(idx)
	if err := export.WriteLabels(lblPath, lbls); err != nil {
		// an image without labels would make the dataset unsplittable
		if rmErr := os.Remove(imgPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			l.WarnContext(ctx, "remove unlabeled image failed", slog.Any("err", rmErr))
		}
		return 0, 0, err
	}
	rec := storage.ImageRecord{Index: idx, ImagePath: imgPath, LabelPath: lblPath, Skipped: s.Skipped, Labels: lbls}
	if visualise {
		vis := g.Layout.VisPath(idx)
		if err := export.WriteOverlayPNG(imgPath, lbls, g.Classes, vis); err != nil {
			// the image and labels are fine; a missing overlay is not a failure
			l.WarnContext(ctx, "overlay failed", slog.Any("err", err))
		} else {
			rec.VisPath = vis
		}
	}
	if g.Catalog != nil {
		if err := g.Catalog.RecordImage(ctx, run, rec); err != nil {
			return 0, 0, fmt.Errorf("catalog: %w", err)
		}
	}
	return len(lbls), s.Skipped, nil
}
