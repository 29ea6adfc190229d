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
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// Env var names used as overrides.
const (
	EnvConfig      = "SDG_CONFIG"
	EnvOutputDir   = "SDG_OUTPUT_DIR"
	EnvNumImages   = "SDG_NUM_IMAGES"
	EnvSeed        = "SDG_SEED"
	EnvVisualise   = "SDG_VISUALISE"
	EnvModel       = "SDG_MODEL"
	EnvTextures    = "SDG_TEXTURES"
	EnvRenderer    = "SDG_RENDERER"
	EnvCatalogDSN  = "SDG_CATALOG_DSN"
	EnvTelemetryIn = "SDG_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SDG_LOG_LEVEL"
	EnvLogFormat = "SDG_LOG_FORMAT"
	EnvLogSource = "SDG_LOG_SOURCE"
	EnvLogFile   = "SDG_LOG_FILE"
)

// Service name for secrets held in the OS keyring.
const keyringService = "synthbox"

// TokenStore abstracts the keyring so tests can swap it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// Load reads the config and returns it together with the catalog password
// found in the keyring (empty when none is stored). A .env file in the
// working directory is applied to the environment first if present.
func Load(path string) (Config, string, error) {
	_ = godotenv.Load()
	cfg := Defaults()
	p, err := Resolve(path)
	if err != nil {
		return cfg, "", err
	}
	if p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return cfg, "", fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, "", fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, "", err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	secret, err := CatalogSecret(cfg)
	if err != nil {
		return cfg, "", err
	}
	return cfg, secret, nil
}

// CatalogSecret returns the stored catalog password for cfg's keyring user.
func CatalogSecret(cfg Config) (string, error) {
	user := cfg.Catalog.KeyringUser
	if user == "" {
		return "", nil
	}
	s, err := tokenStore.Get(keyringService, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		// no keyring backend on headless hosts
		return "", nil
	}
	return s, nil
}

// StoreCatalogSecret saves or, when secret is empty, removes the catalog password.
func StoreCatalogSecret(cfg Config, secret string) error {
	user := cfg.Catalog.KeyringUser
	if user == "" {
		return errors.New("catalog.keyring_user is empty")
	}
	if secret == "" {
		err := tokenStore.Delete(keyringService, user)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return tokenStore.Set(keyringService, user, secret)
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	str(EnvOutputDir, &cfg.Output.Dir)
	if v := strings.TrimSpace(os.Getenv(EnvNumImages)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvNumImages, err))
		} else {
			cfg.Generation.NumImages = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSeed)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSeed, err))
		} else {
			cfg.Generation.Seed = n
		}
	}
	boolean(EnvVisualise, &cfg.Output.Visualise)
	str(EnvModel, &cfg.Paths.Model)
	str(EnvTextures, &cfg.Paths.Textures)
	str(EnvRenderer, &cfg.Renderer.Kind)
	str(EnvCatalogDSN, &cfg.Catalog.DSN)
	boolean(EnvTelemetryIn, &cfg.General.TelemetryOptIn)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	boolean(EnvLogSource, &cfg.Logging.Source)
	str(EnvLogFile, &cfg.Logging.File)
	return errors.Join(errs...)
}

var envKeys = map[string]string{
	"output.dir":               EnvOutputDir,
	"generation.num_images":    EnvNumImages,
	"generation.seed":          EnvSeed,
	"output.visualise":         EnvVisualise,
	"paths.model":              EnvModel,
	"paths.textures":           EnvTextures,
	"renderer.kind":            EnvRenderer,
	"catalog.dsn":              EnvCatalogDSN,
	"general.telemetry_opt_in": EnvTelemetryIn,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
