/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"synthbox/internal/bbox"
	"synthbox/internal/domain"
)

func grayImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 40, G: 40, B: 40, A: 255}), image.Point{}, draw.Src)
	return img
}

func TestDrawOverlayOutlinesBox(t *testing.T) {
	src := grayImage(200, 100)
	red := domain.Color{R: 255, A: 255}
	classes := []domain.ClassInfo{{Index: 0, Name: "car", Color: red}}
	// pixel rect 50..150 x 40..80
	l := bbox.Label{ClassIndex: 0, XCenter: 0.5, YCenter: 0.6, Width: 0.5, Height: 0.4}
	out := DrawOverlay(src, []bbox.Label{l}, classes)

	want := color.RGBA{R: 255, A: 255}
	for _, p := range []image.Point{{50, 60}, {51, 60}, {149, 60}, {100, 79}} {
		if got := out.RGBAAt(p.X, p.Y); got != want {
			t.Fatalf("pixel %v = %v, want outline colour", p, got)
		}
	}
	if got := out.RGBAAt(100, 60); got != (color.RGBA{R: 40, G: 40, B: 40, A: 255}) {
		t.Fatalf("box interior changed: %v", got)
	}
	// source untouched
	if src.RGBAAt(50, 60) == want {
		t.Fatalf("DrawOverlay modified its input")
	}
}

func TestDrawOverlayUnknownClassAndOffscreen(t *testing.T) {
	src := grayImage(64, 64)
	labels := []bbox.Label{
		{ClassIndex: 9, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5},
		{ClassIndex: 0, XCenter: 2, YCenter: 2, Width: 0.1, Height: 0.1},
	}
	out := DrawOverlay(src, labels, nil)
	if got := out.RGBAAt(16, 32); got != (color.RGBA{R: 128, G: 128, B: 128, A: 255}) {
		t.Fatalf("unknown class should draw grey, got %v", got)
	}
}

func TestWriteOverlayPNG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "image_000.png")
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, grayImage(32, 32)); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	out := filepath.Join(dir, "vis", "vis_000.png")
	l := []bbox.Label{{ClassIndex: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5}}
	if err := WriteOverlayPNG(in, l, []domain.ClassInfo{{Index: 0, Name: "a", Color: domain.Color{G: 255, A: 255}}}, out); err != nil {
		t.Fatalf("WriteOverlayPNG: %v", err)
	}
	rf, err := os.Open(out)
	if err != nil {
		t.Fatalf("open overlay: %v", err)
	}
	defer rf.Close()
	cfg, err := png.DecodeConfig(rf)
	if err != nil {
		t.Fatalf("decode overlay: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 32 {
		t.Fatalf("overlay size %dx%d", cfg.Width, cfg.Height)
	}
}
