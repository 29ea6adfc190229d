/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"os"

	"synthbox/internal/crash"
	applog "synthbox/internal/log"
	"synthbox/internal/version"
)

func usage() {
	fmt.Println("synthbox - synthetic top-down bounding box datasets")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  synthbox generate [flags]     Render images with YOLO labels (--num-images, --output, --seed, --visualise, --start-index, --model, --config)")
	fmt.Println("  synthbox split [flags]        Copy the dataset into train/val/test (--dest, --train, --val, --test, --seed)")
	fmt.Println("  synthbox archive [flags]      Zip images, labels and data.yaml (--out)")
	fmt.Println("  synthbox report [flags]       Write a PDF summary of a run (--run, --out)")
	fmt.Println("  synthbox secret [flags]       Store the catalog password read from stdin in the OS keyring (--clear)")
	fmt.Println("  synthbox config [flags]       Print the effective config, or save it with --write")
	fmt.Println("  synthbox version|-v|--version Show version")
}

func main() {
	if code := run(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

func run(args []string) int {
	// environment defaults until a config is loaded
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	cc := &crash.Context{}
	defer crash.Recover(cc)

	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage()
		return 2
	}
	cc.Command = args[0]
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Println("synthbox")
		fmt.Println(version.String())
		return 0
	case "generate":
		return cmdGenerate(args[1:], cc)
	case "split":
		return cmdSplit(args[1:], cc)
	case "archive":
		return cmdArchive(args[1:], cc)
	case "report":
		return cmdReport(args[1:], cc)
	case "secret":
		return cmdSecret(args[1:])
	case "config":
		return cmdConfig(args[1:])
	case "help", "-h", "--help":
		usage()
		return 0
	}
	fmt.Println("unknown command:", args[0])
	usage()
	return 2
}
