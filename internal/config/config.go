/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the generator configuration, read from YAML. Environment
// variables override individual fields at load time.
//
// config_version: bump when the structure changes incompatibly.
type Config struct {
	ConfigVersion int              `yaml:"config_version"`
	Output        OutputConfig     `yaml:"output"`
	Generation    GenerationConfig `yaml:"generation"`
	Camera        CameraConfig     `yaml:"camera"`
	Scene         SceneConfig      `yaml:"scene"`
	Light         LightConfig      `yaml:"light"`
	Paths         PathsConfig      `yaml:"paths"`
	Classes       ClassesConfig    `yaml:"classes"`
	Renderer      RendererConfig   `yaml:"renderer"`
	Split         SplitConfig      `yaml:"split"`
	Catalog       CatalogConfig    `yaml:"catalog"`
	Logging       LoggingConfig    `yaml:"logging"`
	General       GeneralConfig    `yaml:"general"`
}

type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type OutputConfig struct {
	Dir        string `yaml:"dir"`
	ImagesDir  string `yaml:"images_dir"`
	LabelsDir  string `yaml:"labels_dir"`
	VisDir     string `yaml:"vis_dir"`
	Visualise  bool   `yaml:"visualise"`
	StartIndex int    `yaml:"start_index"` // negative resumes after the highest existing image
}

type GenerationConfig struct {
	NumImages      int        `yaml:"num_images"`
	Seed           int64      `yaml:"seed"`
	MinObjects     int        `yaml:"min_objects"`
	MaxObjects     int        `yaml:"max_objects"`
	MaxAttempts    int        `yaml:"max_collision_check_amount"`
	Margin         float64    `yaml:"margin"`
	EdgeBuffer     float64    `yaml:"edge_buffer"`
	Policy         string     `yaml:"policy"`
	ShrinkFactor   float64    `yaml:"shrink_factor"`
	ShrinkSteps    int        `yaml:"shrink_steps"`
	TargetSize     float64    `yaml:"max_scale"`
	ScaleVariation [2]float64 `yaml:"scale_variation_range"`
	RandomTilt     bool       `yaml:"random_tilt"`
	Upright        *bool      `yaml:"upright,omitempty"` // nil: upright for a custom model only
	BBoxSource     string     `yaml:"bbox_source"`
}

type CameraConfig struct {
	Position    Vec3    `yaml:"position"`
	Rotation    Vec3    `yaml:"rotation"` // degrees
	FocalLength float64 `yaml:"focal_length"`
	SensorWidth float64 `yaml:"sensor_width"`
	FOVYDeg     float64 `yaml:"fov_y"` // overrides focal length when > 0
	ClipStart   float64 `yaml:"clip_start"`
	ClipEnd     float64 `yaml:"clip_end"`
}

type SceneConfig struct {
	Resolution struct {
		X          int `yaml:"x"`
		Y          int `yaml:"y"`
		Percentage int `yaml:"percentage"`
	} `yaml:"resolution"`
	GroundHalfX float64    `yaml:"ground_half_x"`
	GroundHalfY float64    `yaml:"ground_half_y"`
	BaseColour  [3]float64 `yaml:"default_colour"`
}

type LightConfig struct {
	Style          string  `yaml:"style"`
	Position       Vec3    `yaml:"position"`
	Rotation       Vec3    `yaml:"rotation"`
	EnergyMin      float64 `yaml:"energy_min"`
	EnergyMax      float64 `yaml:"energy_max"`
	LocationJitter Vec3    `yaml:"location_jitter"`
	RotationJitter Vec3    `yaml:"rotation_jitter"`
}

type PathsConfig struct {
	Model    string `yaml:"model"`
	Textures string `yaml:"textures"`
}

type ClassesConfig struct {
	Names   []string     `yaml:"names,omitempty"`
	Colours [][3]float64 `yaml:"colours,omitempty"`
}

type RendererConfig struct {
	Kind     string   `yaml:"kind"`
	Command  []string `yaml:"command,omitempty"`
	TimeoutS int      `yaml:"timeout_s"`
}

type SplitConfig struct {
	Train float64 `yaml:"train"`
	Val   float64 `yaml:"val"`
	Test  float64 `yaml:"test"`
	Seed  int64   `yaml:"seed"`
	Dest  string  `yaml:"dest"`
}

type CatalogConfig struct {
	// DSN is empty for the per-output SQLite file or a postgres:// URL.
	DSN         string `yaml:"dsn"`
	KeyringUser string `yaml:"keyring_user"`
	Disabled    bool   `yaml:"disabled"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

// Defaults mirrors the stock generator settings, except max_scale, which is 0
// so the primitives keep their modelled size.
func Defaults() Config {
	c := Config{
		ConfigVersion: 1,
		Output:        OutputConfig{Dir: "output", ImagesDir: "images", LabelsDir: "labels", VisDir: filepath.Join("images", "vis"), Visualise: true},
		Generation: GenerationConfig{
			NumImages:      10,
			MinObjects:     7,
			MaxObjects:     7,
			MaxAttempts:    100,
			Margin:         0.5,
			EdgeBuffer:     2,
			Policy:         "skip",
			ShrinkFactor:   0.8,
			ShrinkSteps:    3,
			ScaleVariation: [2]float64{1, 1.5},
			BBoxSource:     "obb",
		},
		Camera: CameraConfig{Position: Vec3{Z: 100}, FocalLength: 50, SensorWidth: 36, ClipStart: 0.1, ClipEnd: 200},
		Light: LightConfig{
			Position:       Vec3{Z: 20},
			EnergyMin:      100,
			EnergyMax:      1000,
			LocationJitter: Vec3{X: 0.1, Y: 0.1, Z: 0.1},
			RotationJitter: Vec3{X: 0.1, Y: 0.1, Z: 0.1},
		},
		Paths:    PathsConfig{Textures: "textures"},
		Renderer: RendererConfig{Kind: "preview", TimeoutS: 600},
		Split:    SplitConfig{Train: 0.7, Val: 0.2, Test: 0.1, Seed: 59, Dest: "dataset"},
		Catalog:  CatalogConfig{KeyringUser: "catalog"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
	c.Scene.Resolution.X, c.Scene.Resolution.Y, c.Scene.Resolution.Percentage = 1920, 1080, 100
	c.Scene.BaseColour = [3]float64{0.5, 0.5, 0.5}
	return c
}

// Width and Height apply the resolution percentage.
func (s SceneConfig) Width() int  { return scalePct(s.Resolution.X, s.Resolution.Percentage) }
func (s SceneConfig) Height() int { return scalePct(s.Resolution.Y, s.Resolution.Percentage) }

func scalePct(v, pct int) int {
	if pct <= 0 {
		pct = 100
	}
	return int(math.Round(float64(v) * float64(pct) / 100))
}

// Validate checks constraints the schema cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.Scene.Width() <= 0 || c.Scene.Height() <= 0 {
		errs = append(errs, fmt.Errorf("scene.resolution must be positive, got %dx%d", c.Scene.Width(), c.Scene.Height()))
	}
	g := c.Generation
	if g.NumImages < 0 {
		errs = append(errs, fmt.Errorf("generation.num_images must be >= 0"))
	}
	if g.MinObjects <= 0 || g.MaxObjects < g.MinObjects {
		errs = append(errs, fmt.Errorf("generation.min_objects/max_objects invalid: %d..%d", g.MinObjects, g.MaxObjects))
	}
	if g.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("generation.max_collision_check_amount must be >= 0"))
	}
	if g.ScaleVariation[0] <= 0 || g.ScaleVariation[1] < g.ScaleVariation[0] {
		errs = append(errs, fmt.Errorf("generation.scale_variation_range invalid: %v", g.ScaleVariation))
	}
	switch strings.ToLower(g.Policy) {
	case "skip", "abort", "shrink":
	default:
		errs = append(errs, fmt.Errorf("generation.policy %q is not skip, abort or shrink", g.Policy))
	}
	if c.Camera.Position.Z <= 0 {
		errs = append(errs, fmt.Errorf("camera.position.z must be above the ground"))
	}
	if c.Camera.FOVYDeg <= 0 && (c.Camera.FocalLength <= 0 || c.Camera.SensorWidth <= 0) {
		errs = append(errs, fmt.Errorf("camera needs fov_y or focal_length and sensor_width"))
	}
	if c.Light.EnergyMax < c.Light.EnergyMin {
		errs = append(errs, fmt.Errorf("light.energy_max < energy_min"))
	}
	s := c.Split
	if s.Train <= 0 || s.Val < 0 || s.Test < 0 || s.Train+s.Val+s.Test > 1+1e-9 {
		errs = append(errs, fmt.Errorf("split ratios invalid: train=%v val=%v test=%v", s.Train, s.Val, s.Test))
	}
	if len(c.Classes.Colours) > 0 && len(c.Classes.Names) > 0 && len(c.Classes.Colours) < len(c.Classes.Names) {
		errs = append(errs, fmt.Errorf("classes.colours has fewer entries than classes.names"))
	}
	return errors.Join(errs...)
}

// FileName is the project-local config file picked up when no path is given.
const FileName = "synthbox.yaml"

// UserConfigPath returns the per-user config file path.
func UserConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "synthbox")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "synthbox")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "synthbox")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "synthbox")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Resolve picks the config file: explicit path, then SDG_CONFIG, then
// ./synthbox.yaml, then the per-user file. It returns "" when none exists.
func Resolve(explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return p, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file from %s: %w", EnvConfig, err)
		}
		return p, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	if p, err := UserConfigPath(); err == nil {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Parse validates data against the schema and decodes it over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := ValidateDocument(data); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) { return yaml.Marshal(cfg) }
