/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"synthbox/internal/config"
	"synthbox/internal/crash"
	"synthbox/internal/domain"
	"synthbox/internal/export"
	applog "synthbox/internal/log"
	"synthbox/internal/pipeline"
	"synthbox/internal/storage"
	"synthbox/internal/telemetry"
)

// commonFlags registers --config and --output on fs.
func commonFlags(fs *flag.FlagSet) (cfgPath, output *string) {
	cfgPath = fs.String("config", "", "config file (default: $SDG_CONFIG, ./synthbox.yaml, then the user config)")
	output = fs.String("output", "", "output directory")
	return cfgPath, output
}

// visited returns the names of the flags set on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// loadConfig loads the config, applies --output and re-initializes logging
// from the logging section.
func loadConfig(path, output string) (config.Config, string, error) {
	cfg, secret, err := config.Load(path)
	if err != nil {
		return cfg, "", err
	}
	if output != "" {
		cfg.Output.Dir = output
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	return cfg, secret, nil
}

func fail(l *slog.Logger, msg string, err error) int {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	return 1
}

func layoutOf(cfg config.Config) storage.Layout {
	return storage.NewLayout(cfg.Output.Dir, cfg.Output.ImagesDir, cfg.Output.LabelsDir, cfg.Output.VisDir)
}

func classesOf(cfg config.Config) ([]domain.ClassInfo, error) {
	cat, err := pipeline.CatalogFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return cat.Classes(), nil
}

func cmdGenerate(args []string, cc *crash.Context) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "generate")
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	cfgPath, output := commonFlags(fs)
	numImages := fs.Int("num-images", 0, "number of images to generate")
	seed := fs.Int64("seed", 0, "base random seed")
	visualise := fs.Bool("visualise", false, "also write box overlays")
	startIndex := fs.Int("start-index", 0, "first image index; -1 continues after existing images")
	model := fs.String("model", "", "OBJ model to place instead of the primitives")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, secret, err := loadConfig(*cfgPath, *output)
	if err != nil {
		return fail(l, "load config failed", err)
	}
	set := visited(fs)
	if set["num-images"] {
		cfg.Generation.NumImages = *numImages
	}
	if set["seed"] {
		cfg.Generation.Seed = *seed
	}
	if set["visualise"] {
		cfg.Output.Visualise = *visualise
	}
	if set["start-index"] {
		cfg.Output.StartIndex = *startIndex
	}
	if set["model"] {
		cfg.Paths.Model = *model
	}
	if err := cfg.Validate(); err != nil {
		return fail(l, "invalid options", err)
	}
	cc.OutputDir, cc.Seed = cfg.Output.Dir, cfg.Generation.Seed

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tcfg)
	defer telemetry.Flush(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, closeFn, err := pipeline.FromConfig(ctx, cfg, secret)
	if err != nil {
		return fail(l, "setup failed", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			l.Warn("close catalog failed", slog.Any("err", err))
		}
	}()

	res, err := g.Run(ctx, pipeline.Options{
		Count:      cfg.Generation.NumImages,
		StartIndex: cfg.Output.StartIndex,
		Visualise:  cfg.Output.Visualise,
	})
	telemetry.GenerationFinished(telemetry.GenerationStats{
		Requested: cfg.Generation.NumImages,
		Generated: res.Generated,
		Failed:    res.Failed,
		Labels:    res.Labels,
		Skipped:   res.Skipped,
		Renderer:  cfg.Renderer.Kind,
		Duration:  res.Duration,
	})
	fmt.Printf("Generated %d images (%d failed, %d labels, %d objects skipped) in %s\n",
		res.Generated, res.Failed, res.Labels, res.Skipped, g.Layout.Root)
	if res.Run != uuid.Nil {
		fmt.Println("Run:", res.Run)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("Interrupted.")
		return 130
	}
	if err != nil {
		return fail(l, "generation failed", err)
	}
	if res.Generated == 0 && res.Failed > 0 {
		return 1
	}
	return 0
}

func cmdSplit(args []string, cc *crash.Context) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "split")
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	cfgPath, output := commonFlags(fs)
	dest := fs.String("dest", "", "destination directory; relative paths are under the output directory")
	train := fs.Float64("train", 0, "train ratio")
	val := fs.Float64("val", 0, "val ratio")
	test := fs.Float64("test", 0, "test ratio")
	seed := fs.Int64("seed", 0, "shuffle seed")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, _, err := loadConfig(*cfgPath, *output)
	if err != nil {
		return fail(l, "load config failed", err)
	}
	cc.OutputDir = cfg.Output.Dir
	set := visited(fs)
	sc := cfg.Split
	if set["dest"] {
		sc.Dest = *dest
	}
	if set["train"] {
		sc.Train = *train
	}
	if set["val"] {
		sc.Val = *val
	}
	if set["test"] {
		sc.Test = *test
	}
	if set["seed"] {
		sc.Seed = *seed
	}
	cc.Seed = sc.Seed
	out := sc.Dest
	if !filepath.IsAbs(out) {
		out = filepath.Join(cfg.Output.Dir, out)
	}

	classes, err := classesOf(cfg)
	if err != nil {
		return fail(l, "load classes failed", err)
	}
	res, err := storage.Split(layoutOf(cfg), storage.Ratios{Train: sc.Train, Val: sc.Val, Test: sc.Test}, sc.Seed, out)
	if err != nil {
		return fail(l, "split failed", err)
	}
	if err := export.WriteDataYAML(out, classes); err != nil {
		return fail(l, "write data.yaml failed", err)
	}
	c := res.Counts()
	fmt.Printf("Split into %s: train=%d val=%d test=%d\n", out, c["train"], c["val"], c["test"])
	return 0
}

func cmdArchive(args []string, cc *crash.Context) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "archive")
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	cfgPath, output := commonFlags(fs)
	out := fs.String("out", "", "archive path (default: <output>.zip)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, _, err := loadConfig(*cfgPath, *output)
	if err != nil {
		return fail(l, "load config failed", err)
	}
	cc.OutputDir = cfg.Output.Dir
	path := *out
	if path == "" {
		path = filepath.Clean(cfg.Output.Dir) + ".zip"
	}
	classes, err := classesOf(cfg)
	if err != nil {
		return fail(l, "load classes failed", err)
	}
	if err := export.WriteArchive(path, layoutOf(cfg), classes); err != nil {
		return fail(l, "archive failed", err)
	}
	fmt.Println("Wrote", path)
	return 0
}

func cmdReport(args []string, cc *crash.Context) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "report")
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	cfgPath, output := commonFlags(fs)
	runID := fs.String("run", "", "run id (default: latest run)")
	out := fs.String("out", "", "PDF path (default: <output>/report.pdf)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, secret, err := loadConfig(*cfgPath, *output)
	if err != nil {
		return fail(l, "load config failed", err)
	}
	cc.OutputDir = cfg.Output.Dir
	if cfg.Catalog.Disabled {
		return fail(l, "report needs the catalog", errors.New("catalog.disabled is set"))
	}
	ctx := context.Background()
	dsn := cfg.Catalog.DSN
	if strings.TrimSpace(dsn) == "" {
		dsn = storage.CatalogPath(layoutOf(cfg))
	}
	if dsn, err = storage.WithPassword(dsn, secret); err != nil {
		return fail(l, "catalog dsn invalid", err)
	}
	cat, err := storage.OpenCatalog(ctx, dsn)
	if err != nil {
		return fail(l, "open catalog failed", err)
	}
	defer func() { _ = cat.Close() }()

	var run uuid.UUID
	if *runID != "" {
		if run, err = uuid.Parse(*runID); err != nil {
			return fail(l, "bad run id", err)
		}
	} else if run, err = cat.LatestRun(ctx); err != nil {
		return fail(l, "no runs recorded", err)
	}
	s, err := cat.Summary(ctx, run)
	if err != nil {
		return fail(l, "summary failed", err)
	}
	classes, err := classesOf(cfg)
	if err != nil {
		return fail(l, "load classes failed", err)
	}
	path := *out
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, "report.pdf")
	}
	if err := export.WriteReport(path, s, classes); err != nil {
		return fail(l, "report failed", err)
	}
	fmt.Println("Wrote", path)
	return 0
}

// cmdSecret reads the catalog password from the first line of stdin.
func cmdSecret(args []string) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "secret")
	fs := flag.NewFlagSet("secret", flag.ContinueOnError)
	cfgPath, _ := commonFlags(fs)
	clearPw := fs.Bool("clear", false, "remove the stored password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, _, err := loadConfig(*cfgPath, "")
	if err != nil {
		return fail(l, "load config failed", err)
	}
	var secret string
	if !*clearPw {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fail(l, "read password failed", err)
		}
		secret = strings.TrimRight(line, "\r\n")
		if secret == "" {
			return fail(l, "empty password", errors.New("use --clear to remove the password"))
		}
	}
	if err := config.StoreCatalogSecret(cfg, secret); err != nil {
		return fail(l, "keyring failed", err)
	}
	if *clearPw {
		fmt.Println("Catalog password removed.")
	} else {
		fmt.Println("Catalog password stored.")
	}
	return 0
}

// cmdConfig prints the effective config, or saves it with --write.
func cmdConfig(args []string) int {
	l := applog.WithOperation(applog.WithComponent("cli"), "config")
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	cfgPath, output := commonFlags(fs)
	write := fs.String("write", "", "save the effective config to this path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, _, err := loadConfig(*cfgPath, *output)
	if err != nil {
		return fail(l, "load config failed", err)
	}
	if *write != "" {
		if err := config.Save(*write, cfg); err != nil {
			return fail(l, "save config failed", err)
		}
		fmt.Println("Wrote", *write)
		return 0
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return fail(l, "marshal config failed", err)
	}
	fmt.Print(string(data))
	return 0
}
