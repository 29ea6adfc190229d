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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"synthbox/internal/config"
	"synthbox/internal/export"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Visualise = false
	cfg.Scene.Resolution.X, cfg.Scene.Resolution.Y = 64, 48
	cfg.Generation.Seed = 11
	cfg.Paths.Textures = ""
	cfg.Catalog.Disabled = true
	return cfg
}

func newGenerator(t *testing.T, cfg config.Config) *Generator {
	t.Helper()
	g, closeFn, err := FromConfig(context.Background(), cfg, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return g
}

func TestRunWritesImagesAndLabels(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Visualise = true
	g := newGenerator(t, cfg)

	res, err := g.Run(context.Background(), Options{Count: 3})
	require.NoError(t, err)
	require.Equal(t, 3, res.Generated)
	require.Zero(t, res.Failed)
	require.Equal(t, uuid.Nil, res.Run)

	total := 0
	for i := 0; i < 3; i++ {
		require.FileExists(t, g.Layout.ImagePath(i))
		require.FileExists(t, g.Layout.VisPath(i))
		labels, err := export.ReadLabels(g.Layout.LabelPath(i))
		require.NoError(t, err)
		for _, l := range labels {
			require.True(t, l.Valid(), "invalid label %+v", l)
		}
		total += len(labels)
	}
	require.Equal(t, res.Labels, total)
	require.Positive(t, total)
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	a := testConfig(t)
	b := testConfig(t)
	ga, gb := newGenerator(t, a), newGenerator(t, b)
	_, err := ga.Run(context.Background(), Options{Count: 2})
	require.NoError(t, err)
	_, err = gb.Run(context.Background(), Options{Count: 2})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		la, err := os.ReadFile(ga.Layout.LabelPath(i))
		require.NoError(t, err)
		lb, err := os.ReadFile(gb.Layout.LabelPath(i))
		require.NoError(t, err)
		require.Equal(t, string(la), string(lb))
	}
}

func TestRunResumesNumbering(t *testing.T) {
	cfg := testConfig(t)
	g := newGenerator(t, cfg)
	_, err := g.Run(context.Background(), Options{Count: 2})
	require.NoError(t, err)
	res, err := g.Run(context.Background(), Options{Count: 2, StartIndex: -1})
	require.NoError(t, err)
	require.Equal(t, 2, res.First)
	for i := 0; i < 4; i++ {
		require.FileExists(t, g.Layout.LabelPath(i))
	}
}

func TestAbortPolicyCountsFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Policy = "abort"
	cfg.Generation.MaxAttempts = 0
	g := newGenerator(t, cfg)
	res, err := g.Run(context.Background(), Options{Count: 2})
	require.NoError(t, err)
	require.Equal(t, 2, res.Failed)
	require.Zero(t, res.Generated)
	_, err = os.Stat(g.Layout.LabelPath(0))
	require.True(t, errors.Is(err, os.ErrNotExist), "no label file for a failed image")
}

func TestSkipPolicyKeepsImage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.MaxAttempts = 0
	g := newGenerator(t, cfg)
	res, err := g.Run(context.Background(), Options{Count: 1})
	require.NoError(t, err)
	require.Equal(t, 1, res.Generated)
	require.Equal(t, 7, res.Skipped)
	require.Zero(t, res.Labels)
}

func TestRunStopsOnCancel(t *testing.T) {
	g := newGenerator(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := g.Run(ctx, Options{Count: 5})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, res.Generated)
}

func TestRunRecordsCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Disabled = false
	g := newGenerator(t, cfg)
	require.NotNil(t, g.Catalog)
	res, err := g.Run(context.Background(), Options{Count: 2})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.Run)

	s, err := g.Catalog.Summary(context.Background(), res.Run)
	require.NoError(t, err)
	require.Equal(t, 2, s.Generated)
	require.Len(t, s.ObjectsPerImage, 2)
	require.Len(t, s.BoxAreas, res.Labels)
	require.FileExists(t, filepath.Join(cfg.Output.Dir, ".synthbox", "catalog.sqlite"))
}

func TestCameraFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cam := CameraFromConfig(cfg)
	require.Equal(t, 1920, cam.Width)
	require.InDelta(t, 100, cam.Position.Z, 1e-12)
	require.NoError(t, cam.Validate())

	cfg.Camera.FOVYDeg = 60
	cam = CameraFromConfig(cfg)
	require.InDelta(t, 1.0471975511965976, cam.FOVY, 1e-12)
}

func TestCustomModelUsesWideObjectRange(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "crate.obj")
	require.NoError(t, os.WriteFile(obj, []byte("v -1 -1 0\nv 1 -1 0\nv 1 1 0\nv -1 1 0\nv 0 0 1\n"), 0o644))
	cfg := testConfig(t)
	cfg.Paths.Model = obj
	cat, err := CatalogFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, cat, 1)
	require.Equal(t, "crate", cat[0].Class.Name)
	o, err := SceneOptions(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 1, o.MinObjects)
	require.Equal(t, 10, o.MaxObjects)
	require.True(t, o.Upright)

	flat := false
	cfg.Generation.Upright = &flat
	o, err = SceneOptions(cfg, nil)
	require.NoError(t, err)
	require.False(t, o.Upright)

	o, err = SceneOptions(testConfig(t), nil)
	require.NoError(t, err)
	require.False(t, o.Upright, "primitives keep their modelled orientation")
}

func TestLabelWriteFailureRemovesImage(t *testing.T) {
	g := newGenerator(t, testConfig(t))
	// a non-empty directory where the label file should go makes the rename fail
	blocker := g.Layout.LabelPath(0)
	require.NoError(t, os.MkdirAll(blocker, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "keep"), nil, 0o644))

	res, err := g.Run(context.Background(), Options{Count: 1})
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Zero(t, res.Generated)
	require.NoFileExists(t, g.Layout.ImagePath(0))
}
