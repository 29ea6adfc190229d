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
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seedDataset(t *testing.T, n int) Layout {
	t.Helper()
	l := NewLayout(t.TempDir(), "", "", "")
	for i := 0; i < n; i++ {
		touch(t, l.ImagePath(i))
		touch(t, l.LabelPath(i))
	}
	return l
}

func TestPlanSplitCountsAndRemainder(t *testing.T) {
	l := seedDataset(t, 10)
	plan, err := PlanSplit(l, Ratios{Train: 0.65, Val: 0.15, Test: 0.15}, 59)
	if err != nil {
		t.Fatalf("PlanSplit: %v", err)
	}
	// int(6.5)=6, int(1.5)=1, int(1.5)=1, remainder 2 goes to train
	want := map[string]int{"train": 8, "val": 1, "test": 1}
	if diff := cmp.Diff(want, plan.Counts()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
	var all []string
	for _, name := range SplitNames {
		all = append(all, plan[name]...)
	}
	sort.Strings(all)
	if len(all) != 10 {
		t.Fatalf("images lost or duplicated: %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("duplicate image %s", all[i])
		}
	}
}

func TestPlanSplitIsDeterministic(t *testing.T) {
	l := seedDataset(t, 20)
	r := Ratios{Train: 0.7, Val: 0.2, Test: 0.1}
	a, err := PlanSplit(l, r, 59)
	if err != nil {
		t.Fatal(err)
	}
	b, err := PlanSplit(l, r, 59)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed gave different splits:\n%s", diff)
	}
}

func TestPlanSplitErrors(t *testing.T) {
	l := seedDataset(t, 3)
	if _, err := PlanSplit(l, Ratios{Train: 0}, 1); !errors.Is(err, ErrInvalidRatios) {
		t.Fatalf("zero train ratio: %v", err)
	}
	if _, err := PlanSplit(l, Ratios{Train: 0.8, Val: 0.3}, 1); !errors.Is(err, ErrInvalidRatios) {
		t.Fatalf("ratios over 1: %v", err)
	}
	touch(t, l.ImagePath(3))
	if _, err := PlanSplit(l, Ratios{Train: 1}, 1); !errors.Is(err, ErrUnlabeledImage) {
		t.Fatalf("unlabeled image: %v", err)
	}
}

func TestSplitCopiesPairs(t *testing.T) {
	l := seedDataset(t, 10)
	dest := filepath.Join(t.TempDir(), "dataset")
	plan, err := Split(l, Ratios{Train: 0.7, Val: 0.2, Test: 0.1}, 59, dest)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	total := 0
	for _, name := range SplitNames {
		imgs, _ := os.ReadDir(filepath.Join(dest, "images", name))
		lbls, _ := os.ReadDir(filepath.Join(dest, "labels", name))
		if len(imgs) != len(plan[name]) || len(lbls) != len(plan[name]) {
			t.Fatalf("%s: %d images, %d labels, planned %d", name, len(imgs), len(lbls), len(plan[name]))
		}
		for _, img := range plan[name] {
			stem := filepath.Base(img)
			stem = stem[:len(stem)-len(".png")]
			if _, err := os.Stat(filepath.Join(dest, "labels", name, stem+".txt")); err != nil {
				t.Fatalf("label for %s missing in %s: %v", stem, name, err)
			}
		}
		total += len(imgs)
	}
	if total != 10 {
		t.Fatalf("copied %d images, want 10", total)
	}
}
