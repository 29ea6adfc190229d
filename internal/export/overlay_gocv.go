//go:build gocv

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"synthbox/internal/bbox"
	"synthbox/internal/domain"
)

// writeOverlay draws through OpenCV, matching the look of cv2 annotations.
func writeOverlay(imagePath string, labels []bbox.Label, classes []domain.ClassInfo, out string) error {
	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return errors.New("could not read image")
	}
	w, h := mat.Cols(), mat.Rows()
	for _, l := range labels {
		r := l.PixelRect(w, h).Clip(w, h)
		if r.Empty() {
			continue
		}
		name, col := classStyle(l.ClassIndex, classes)
		rect := image.Rect(int(r.XMin), int(r.YMin), int(r.XMax), int(r.YMax))
		gocv.Rectangle(&mat, rect, col, OverlayStroke)
		gocv.PutText(&mat, name, image.Pt(rect.Min.X, rect.Min.Y-10), gocv.FontHersheySimplex, 0.9, col, 2)
	}
	if !gocv.IMWrite(out, mat) {
		return fmt.Errorf("write %s failed", out)
	}
	return nil
}
