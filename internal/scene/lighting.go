/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"synthbox/internal/domain"
)

// Lighting styles.
const (
	StyleThreePoint = "three_point"
	StyleStudio     = "studio"
	StyleOutdoor    = "outdoor"
	StyleDramatic   = "dramatic"
)

// Styles lists every rig style in selection order.
var Styles = []string{StyleThreePoint, StyleStudio, StyleOutdoor, StyleDramatic}

// KeyLight configures the jittered key light of the three-point rig.
type KeyLight struct {
	Position       r3.Vec
	Rotation       r3.Vec
	EnergyMin      float64
	EnergyMax      float64
	LocationJitter r3.Vec
	RotationJitter r3.Vec
}

func uniform(rng Rand, lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

func jitter(rng Rand, base, d r3.Vec) r3.Vec {
	return r3.Vec{
		X: uniform(rng, base.X-d.X, base.X+d.X),
		Y: uniform(rng, base.Y-d.Y, base.Y+d.Y),
		Z: uniform(rng, base.Z-d.Z, base.Z+d.Z),
	}
}

// BuildRig creates the lights for style. An empty style picks one at random.
func BuildRig(style string, key KeyLight, rng Rand) (domain.LightRig, error) {
	if style == "" {
		style = Styles[rng.Intn(len(Styles))]
	}
	rig := domain.LightRig{Style: style}
	switch style {
	case StyleThreePoint:
		rig.Lights = []domain.Light{
			{
				Name: "KeyLight", Kind: domain.LightArea,
				Position: jitter(rng, key.Position, key.LocationJitter),
				Rotation: jitter(rng, key.Rotation, key.RotationJitter),
				Energy:   uniform(rng, key.EnergyMin, key.EnergyMax),
				Size:     uniform(rng, 5, 10),
			},
			{
				Name: "FillLight", Kind: domain.LightArea,
				Position: r3.Vec{X: uniform(rng, -12, -8), Y: uniform(rng, -5, 5), Z: uniform(rng, 8, 12)},
				Energy:   uniform(rng, 300, 500),
				Size:     uniform(rng, 8, 15),
			},
			{
				Name: "BackLight", Kind: domain.LightArea,
				Position: r3.Vec{X: uniform(rng, -3, 3), Y: uniform(rng, -12, -8), Z: uniform(rng, 12, 15)},
				Energy:   uniform(rng, 200, 400),
			},
		}
	case StyleStudio:
		for i := 0; i < 4; i++ {
			rig.Lights = append(rig.Lights, domain.Light{
				Name:     fmt.Sprintf("StudioLight%d", i),
				Kind:     domain.LightArea,
				Position: r3.Vec{X: uniform(rng, -8, 8), Y: uniform(rng, -8, 8), Z: uniform(rng, 10, 15)},
				Energy:   uniform(rng, 300, 500),
				Size:     uniform(rng, 4, 8),
			})
		}
	case StyleOutdoor:
		rig.Lights = []domain.Light{
			{
				Name: "Sun", Kind: domain.LightSun,
				Position: r3.Vec{X: uniform(rng, -5, 5), Y: uniform(rng, -5, 5), Z: uniform(rng, 15, 20)},
				Rotation: r3.Vec{X: uniform(rng, 0, 0.8), Y: uniform(rng, -0.8, 0.8), Z: uniform(rng, -0.8, 0.8)},
				Energy:   uniform(rng, 2, 5),
			},
			{
				Name: "Ambient", Kind: domain.LightArea,
				Position: r3.Vec{Z: uniform(rng, 10, 15)},
				Energy:   uniform(rng, 100, 300),
				Size:     20,
			},
		}
	case StyleDramatic:
		spot := domain.Light{
			Name: "DramaticLight", Kind: domain.LightSpot,
			Position: r3.Vec{X: uniform(rng, -10, 10), Y: uniform(rng, -10, 10), Z: uniform(rng, 12, 18)},
			Rotation: r3.Vec{X: uniform(rng, 0, 0.8), Y: uniform(rng, -0.8, 0.8), Z: uniform(rng, -0.8, 0.8)},
			Energy:   uniform(rng, 1000, 2000),
			SpotSize: uniform(rng, 0.5, 1.2),
		}
		fill := domain.Light{
			Name: "DramaticFill", Kind: domain.LightArea,
			Position: r3.Vec{X: -spot.Position.X, Y: -spot.Position.Y, Z: uniform(rng, 5, 10)},
			Energy:   uniform(rng, 100, 200),
		}
		rig.Lights = []domain.Light{spot, fill}
	default:
		return domain.LightRig{}, fmt.Errorf("unknown lighting style %q", style)
	}
	return rig, nil
}
