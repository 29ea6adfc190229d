/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"synthbox/internal/bbox"
	"synthbox/internal/domain"
)

// OverlayStroke is the box outline width in pixels.
const OverlayStroke = 2

// DrawOverlay copies src and draws every label as a class-coloured rectangle
// with the class name above it. Labels of unknown classes use grey and their index.
func DrawOverlay(src image.Image, labels []bbox.Label, classes []domain.ClassInfo) *image.RGBA {
	b := src.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	w, h := b.Dx(), b.Dy()
	for _, l := range labels {
		r := l.PixelRect(w, h).Clip(w, h)
		x0, y0 := int(math.Round(r.XMin)), int(math.Round(r.YMin))
		x1, y1 := int(math.Round(r.XMax))-1, int(math.Round(r.YMax))-1
		if x1 < x0 || y1 < y0 {
			continue
		}
		name, col := classStyle(l.ClassIndex, classes)
		for i := 0; i < OverlayStroke; i++ {
			strokeRect(img, x0+i, y0+i, x1-i, y1-i, col)
		}
		caption(img, name, x0, y0, col)
	}
	return img
}

// WriteOverlayPNG reads the rendered image, draws labels on it and writes a PNG to out.
func WriteOverlayPNG(imagePath string, labels []bbox.Label, classes []domain.ClassInfo, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return writeOverlay(imagePath, labels, classes, out)
}

func classStyle(idx int, classes []domain.ClassInfo) (string, color.RGBA) {
	for _, c := range classes {
		if c.Index == idx {
			return c.Name, toRGBA(c.Color)
		}
	}
	return strconv.Itoa(idx), color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

// caption draws name on a filled strip just above (x, y), or inside the box
// when there is no room above.
func caption(img *image.RGBA, name string, x, y int, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor(bg)), Face: face}
	tw := d.MeasureString(name).Ceil()
	th := face.Metrics().Height.Ceil()
	top := y - th - 1
	if top < 0 {
		top = y + OverlayStroke
	}
	fillRect(img, x, top, x+tw+3, top+th, bg)
	d.Dot = fixed.P(x+2, top+face.Metrics().Ascent.Ceil())
	d.DrawString(name)
}

// textColor picks black or white for contrast against bg.
func textColor(bg color.RGBA) color.RGBA {
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum > 140 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

func encodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

func toRGBA(c domain.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
