/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a Scene into an image file. Labels never depend on
// the rendered pixels; renderers only produce the picture.
package render

import (
	"context"
	"fmt"
	"strings"

	"synthbox/internal/domain"
)

// Renderer writes the image for s to outPath.
type Renderer interface {
	Render(ctx context.Context, s *domain.Scene, outPath string) error
}

// Config selects and configures a renderer.
type Config struct {
	Kind    string   `yaml:"kind"`    // "preview" (default) or "command"
	Command []string `yaml:"command"` // argv template for Kind=command
	Timeout int      `yaml:"timeout_s"`
}

// New returns the renderer described by cfg.
func New(cfg Config) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "preview":
		return &Preview{}, nil
	case "command":
		return NewCommand(cfg.Command, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown renderer kind %q", cfg.Kind)
	}
}
