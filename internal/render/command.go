/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"synthbox/internal/domain"
	applog "synthbox/internal/log"
)

// Command hands the scene to an external renderer process. The scene is
// written as JSON next to the output image and the argv template is expanded:
//
//	{scene}  path of the scene JSON
//	{out}    image path to produce
//	{index}  image index
//	{width}, {height}  resolution in pixels
type Command struct {
	Argv    []string
	Timeout time.Duration
	// KeepScene leaves the scene JSON in place after a successful render.
	KeepScene bool
}

// NewCommand validates the argv template.
func NewCommand(argv []string, timeoutS int) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("command renderer needs a program")
	}
	c := &Command{Argv: append([]string(nil), argv...)}
	if timeoutS > 0 {
		c.Timeout = time.Duration(timeoutS) * time.Second
	}
	return c, nil
}

// Render implements Renderer.
func (c *Command) Render(ctx context.Context, s *domain.Scene, outPath string) error {
	l := applog.WithOperation(applog.WithComponent("render"), "command").With(slog.Int("index", s.Index))
	scenePath := outPath + ".scene.json"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scene: %w", err)
	}
	if err := os.WriteFile(scenePath, data, 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := c.expand(s, scenePath, outPath)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	start := time.Now()
	if err := cmd.Run(); err != nil {
		l.Error("renderer failed", slog.Any("err", err), slog.String("output", tail(out.String(), 2000)))
		return fmt.Errorf("run renderer: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("renderer produced no image at %s: %w", outPath, err)
	}
	l.Debug("rendered", slog.Duration("took", time.Since(start)))
	if !c.KeepScene {
		_ = os.Remove(scenePath)
	}
	return nil
}

func (c *Command) expand(s *domain.Scene, scenePath, outPath string) []string {
	r := strings.NewReplacer(
		"{scene}", scenePath,
		"{out}", outPath,
		"{index}", strconv.Itoa(s.Index),
		"{width}", strconv.Itoa(s.Camera.Width),
		"{height}", strconv.Itoa(s.Camera.Height),
	)
	out := make([]string, len(c.Argv))
	for i, a := range c.Argv {
		out[i] = r.Replace(a)
	}
	return out
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
