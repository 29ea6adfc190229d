/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// StateDirName holds catalog and crash data under the output root.
	StateDirName = ".synthbox"

	imagePattern = "image_%03d.png"
	labelPattern = "image_%03d.txt"
	visPattern   = "vis_%03d.png"
)

var imageName = regexp.MustCompile(`^image_(\d+)\.png$`)

// Layout names the output directories of one dataset.
// Root is the output directory; the others are absolute paths below it unless
// configured as absolute paths elsewhere.
type Layout struct {
	Root   string
	Images string
	Labels string
	Vis    string
}

// NewLayout resolves the image, label and visualisation directories against root.
// Empty names fall back to images, labels and images/vis.
func NewLayout(root, images, labels, vis string) Layout {
	resolve := func(p, def string) string {
		if strings.TrimSpace(p) == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	return Layout{
		Root:   root,
		Images: resolve(images, "images"),
		Labels: resolve(labels, "labels"),
		Vis:    resolve(vis, filepath.Join("images", "vis")),
	}
}

// EnsureLayout creates all directories of l.
func EnsureLayout(l Layout) error {
	if strings.TrimSpace(l.Root) == "" {
		return errors.New("output root is required")
	}
	for _, d := range []string{l.Root, l.Images, l.Labels, l.Vis, l.StateDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

func (l Layout) ImagePath(index int) string {
	return filepath.Join(l.Images, fmt.Sprintf(imagePattern, index))
}
func (l Layout) LabelPath(index int) string {
	return filepath.Join(l.Labels, fmt.Sprintf(labelPattern, index))
}
func (l Layout) VisPath(index int) string {
	return filepath.Join(l.Vis, fmt.Sprintf(visPattern, index))
}

// StateDir is where the catalog and crash reports go.
func (l Layout) StateDir() string { return filepath.Join(l.Root, StateDirName) }

// Indexes lists the sorted indexes of the images present in l.Images.
func (l Layout) Indexes() ([]int, error) {
	ents, err := os.ReadDir(l.Images)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read images dir: %w", err)
	}
	var out []int
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		m := imageName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// NextIndex returns one past the highest existing image index, or 0 for an empty dataset.
func (l Layout) NextIndex() (int, error) {
	idx, err := l.Indexes()
	if err != nil || len(idx) == 0 {
		return 0, err
	}
	return idx[len(idx)-1] + 1, nil
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and renames it
// into place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
