/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidCamera is returned by Camera.Validate.
var ErrInvalidCamera = errors.New("invalid camera")

// Camera is a pinhole camera. It is constant for every object of one image.
type Camera struct {
	Position r3.Vec  `json:"position"`
	Rotation r3.Vec  `json:"rotation"` // Euler XYZ, radians; zero looks straight down
	FOVY     float64 `json:"fov_y"`    // vertical field of view, radians
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Near     float64 `json:"near,omitempty"` // renderer clip planes; projection ignores them
	Far      float64 `json:"far,omitempty"`
}

// TopDown returns a camera at (0,0,height) looking at the ground with image up along +Y.
func TopDown(height, fovY float64, width, heightPx int) Camera {
	return Camera{
		Position: r3.Vec{Z: height},
		FOVY:     fovY,
		Width:    width,
		Height:   heightPx,
		Near:     0.1,
		Far:      2 * height,
	}
}

// FOVFromFocalLength converts a lens focal length and sensor width (both mm)
// into a vertical FOV for the given resolution. The sensor is fitted to the
// wider image axis.
func FOVFromFocalLength(focalMM, sensorMM float64, width, height int) float64 {
	if focalMM <= 0 || sensorMM <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	sensorH := sensorMM
	if width >= height {
		sensorH = sensorMM * float64(height) / float64(width)
	}
	return 2 * math.Atan(sensorH/(2*focalMM))
}

// Validate checks that FOV and resolution define a usable projection.
func (c Camera) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidCamera, c.Width, c.Height)
	}
	if !(c.FOVY > 0 && c.FOVY < math.Pi) {
		return fmt.Errorf("%w: fov %.4f rad outside (0, pi)", ErrInvalidCamera, c.FOVY)
	}
	return nil
}

// Aspect is width over height.
func (c Camera) Aspect() float64 { return float64(c.Width) / float64(c.Height) }

func (c Camera) focal() float64 { return 1 / math.Tan(c.FOVY/2) }

// ToCamera translates p by the negative camera position and applies the
// inverse camera orientation.
func (c Camera) ToCamera(p r3.Vec) r3.Vec {
	return Inverse(Euler(c.Rotation)).Rotate(r3.Sub(p, c.Position))
}

// Depth is the distance of p along the viewing axis; non-positive means behind the camera.
func (c Camera) Depth(p r3.Vec) float64 { return -c.ToCamera(p).Z }

// Project maps a world point to pixel coordinates with (0,0) at the top-left.
// ok is false when the point is not in front of the camera. Points outside
// the frame still project; clipping is the caller's concern.
func (c Camera) Project(p r3.Vec) (px r2.Vec, ok bool) {
	v := c.ToCamera(p)
	depth := -v.Z
	if depth <= 0 {
		return r2.Vec{}, false
	}
	f := c.focal()
	ndcX := v.X / depth * f / c.Aspect()
	ndcY := v.Y / depth * f
	return r2.Vec{
		X: (ndcX + 1) / 2 * float64(c.Width),
		Y: (1 - ndcY) / 2 * float64(c.Height),
	}, true
}

// Unproject returns the world point seen at pixel px at the given depth.
func (c Camera) Unproject(px r2.Vec, depth float64) r3.Vec {
	f := c.focal()
	ndcX := px.X/float64(c.Width)*2 - 1
	ndcY := 1 - px.Y/float64(c.Height)*2
	v := r3.Vec{
		X: ndcX * c.Aspect() / f * depth,
		Y: ndcY / f * depth,
		Z: -depth,
	}
	return r3.Add(c.Position, Euler(c.Rotation).Rotate(v))
}

// GroundFootprint returns the half-extents of the ground rectangle visible
// from a top-down camera at its height.
func (c Camera) GroundFootprint() (halfX, halfY float64) {
	d := c.Position.Z
	halfY = d / c.focal()
	return halfY * c.Aspect(), halfY
}
