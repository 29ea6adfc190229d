/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"synthbox/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv(config.EnvConfig, "")
	t.Setenv("SDG_TELEMETRY_OPT_IN", "")
	keyring.MockInit()
	return dir
}

func TestRunUsageAndVersion(t *testing.T) {
	isolate(t)
	require.Equal(t, 2, run(nil))
	require.Equal(t, 2, run([]string{"frobnicate"}))
	require.Equal(t, 0, run([]string{"version"}))
	require.Equal(t, 2, run([]string{"generate", "--no-such-flag"}))
}

func TestConfigWriteRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "out.yaml")
	require.Equal(t, 0, run([]string{"config", "--write", path, "--output", "data"}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.Parse(b)
	require.NoError(t, err)
	require.Equal(t, "data", cfg.Output.Dir)
}

func TestGenerateSplitArchiveReport(t *testing.T) {
	dir := isolate(t)
	yml := "scene:\n  resolution:\n    x: 64\n    y: 48\n    percentage: 100\npaths:\n  textures: \"\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(yml), 0o644))
	out := filepath.Join(dir, "ds")

	require.Equal(t, 0, run([]string{"generate", "--output", out, "--num-images", "4", "--seed", "3", "--visualise"}))
	require.FileExists(t, filepath.Join(out, "images", "image_003.png"))
	require.FileExists(t, filepath.Join(out, "labels", "image_003.txt"))

	require.Equal(t, 0, run([]string{"split", "--output", out, "--dest", "split"}))
	require.FileExists(t, filepath.Join(out, "split", "data.yaml"))

	zipPath := filepath.Join(dir, "ds.zip")
	require.Equal(t, 0, run([]string{"archive", "--output", out, "--out", zipPath}))
	require.FileExists(t, zipPath)

	require.Equal(t, 0, run([]string{"report", "--output", out}))
	require.FileExists(t, filepath.Join(out, "report.pdf"))
}

func TestSecretClear(t *testing.T) {
	isolate(t)
	require.Equal(t, 0, run([]string{"secret", "--clear"}))
}
