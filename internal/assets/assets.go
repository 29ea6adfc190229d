/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets discovers textures and reads model geometry from disk.
package assets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/domain"
	"synthbox/internal/geom"
)

// ErrUnsupportedModel is returned for model formats other than Wavefront OBJ.
var ErrUnsupportedModel = errors.New("unsupported model format")

var textureExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// FindTextures walks dir and returns image files sorted by path.
// A missing directory yields no textures and no error.
func FindTextures(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if textureExts[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan textures: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// LoadModel reads a model file into geometry. Only OBJ is understood.
func LoadModel(path string) (domain.Geometry, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".obj" {
		return domain.Geometry{}, fmt.Errorf("%w: %s", ErrUnsupportedModel, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Geometry{}, fmt.Errorf("open model: %w", err)
	}
	defer func() { _ = f.Close() }()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadOBJ(name, f)
}

// ReadOBJ collects "v x y z" records; every other statement is ignored.
func ReadOBJ(name string, r io.Reader) (domain.Geometry, error) {
	var vs []r3.Vec
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || f[0] != "v" {
			continue
		}
		if len(f) < 4 {
			return domain.Geometry{}, fmt.Errorf("obj line %d: vertex needs 3 coordinates", line)
		}
		var c [3]float64
		for i := range c {
			v, err := strconv.ParseFloat(f[i+1], 64)
			if err != nil {
				return domain.Geometry{}, fmt.Errorf("obj line %d: %w", line, err)
			}
			c[i] = v
		}
		vs = append(vs, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
	}
	if err := sc.Err(); err != nil {
		return domain.Geometry{}, fmt.Errorf("read obj: %w", err)
	}
	b, ok := geom.BoundsOf(vs)
	if !ok {
		return domain.Geometry{}, fmt.Errorf("%w: %q has no vertices", domain.ErrInvalidGeometry, name)
	}
	g := domain.Geometry{Name: name, Bounds: b, Vertices: vs}
	if err := g.Validate(); err != nil {
		return domain.Geometry{}, err
	}
	return g, nil
}
