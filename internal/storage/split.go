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
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	applog "synthbox/internal/log"
)

// Split names, in copy order.
var SplitNames = []string{"train", "val", "test"}

var (
	ErrInvalidRatios  = errors.New("invalid split ratios")
	ErrUnlabeledImage = errors.New("image and label counts differ")
)

// Ratios for the dataset split. Whatever rounding leaves over goes to train.
type Ratios struct {
	Train float64
	Val   float64
	Test  float64
}

func (r Ratios) Validate() error {
	if r.Train <= 0 {
		return fmt.Errorf("%w: train ratio must be > 0", ErrInvalidRatios)
	}
	if r.Val < 0 || r.Test < 0 {
		return fmt.Errorf("%w: ratios must not be negative", ErrInvalidRatios)
	}
	if r.Train+r.Val+r.Test > 1+1e-9 {
		return fmt.Errorf("%w: ratios sum to more than 1", ErrInvalidRatios)
	}
	return nil
}

// SplitResult maps split name to the image paths assigned to it.
type SplitResult map[string][]string

func (s SplitResult) Counts() map[string]int {
	out := make(map[string]int, len(s))
	for k, v := range s {
		out[k] = len(v)
	}
	return out
}

// PlanSplit shuffles the images of l with seed and partitions them.
// The same images and seed always give the same partition.
func PlanSplit(l Layout, r Ratios, seed int64) (SplitResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	images, err := listExt(l.Images, ".png")
	if err != nil {
		return nil, err
	}
	labels, err := listExt(l.Labels, ".txt")
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrUnlabeledImage, len(images), len(labels))
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })

	n := len(images)
	train := int(float64(n) * r.Train)
	val := int(float64(n) * r.Val)
	test := int(float64(n) * r.Test)
	train += n - (train + val + test)

	return SplitResult{
		"train": images[:train],
		"val":   images[train : train+val],
		"test":  images[train+val:],
	}, nil
}

// Split partitions the dataset in l and copies images and labels into
// dest/images/<split> and dest/labels/<split>.
func Split(l Layout, r Ratios, seed int64, dest string) (SplitResult, error) {
	lg := applog.WithOperation(applog.WithComponent("storage"), "split").With(
		slog.String("src", l.Root), slog.String("dest", dest))
	if strings.TrimSpace(dest) == "" {
		return nil, errors.New("split destination is required")
	}
	plan, err := PlanSplit(l, r, seed)
	if err != nil {
		return nil, err
	}
	for _, sub := range []string{"images", "labels"} {
		for _, name := range SplitNames {
			if err := os.MkdirAll(filepath.Join(dest, sub, name), 0o755); err != nil {
				return nil, fmt.Errorf("create split dir: %w", err)
			}
		}
	}
	for _, name := range SplitNames {
		for _, img := range plan[name] {
			stem := strings.TrimSuffix(filepath.Base(img), filepath.Ext(img))
			lbl := filepath.Join(l.Labels, stem+".txt")
			if _, err := os.Stat(lbl); err != nil {
				return nil, fmt.Errorf("label for %s: %w", filepath.Base(img), err)
			}
			if err := copyFile(img, filepath.Join(dest, "images", name, filepath.Base(img))); err != nil {
				return nil, fmt.Errorf("copy image: %w", err)
			}
			if err := copyFile(lbl, filepath.Join(dest, "labels", name, stem+".txt")); err != nil {
				return nil, fmt.Errorf("copy label: %w", err)
			}
		}
	}
	c := plan.Counts()
	lg.Info("dataset split", slog.Int("train", c["train"]), slog.Int("val", c["val"]), slog.Int("test", c["test"]))
	return plan, nil
}

// listExt returns the sorted files in dir with extension ext.
func listExt(dir, ext string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
