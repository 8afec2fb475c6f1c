//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config implements the configuration of the analyser: the user-facing Config loaded from
// YAML, the logger built from it, and development constants.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the user configuration of a run. Command-line flags override file values.
type Config struct {
	// MaxIterations caps the fixed-point computation; exceeding it is an internal error.
	MaxIterations int `yaml:"maxIterations"`
	// Parallelism bounds the number of clusters analysed concurrently. 1 is sequential.
	Parallelism int `yaml:"parallelism"`
	// RecordHistory keeps every iteration's events in the result.
	RecordHistory bool `yaml:"recordHistory"`
	// LogLevel is one of "error", "warn", "info" or "debug".
	LogLevel string `yaml:"logLevel"`
	// DebugTargets are method names whose statement analysis is logged at debug level.
	DebugTargets []string `yaml:"debugTargets"`
	// AnnotatedAPIs are contract files loaded in addition to the embedded ones.
	AnnotatedAPIs []string `yaml:"annotatedAPIs"`
	// APICacheDir holds the compressed contract cache. Empty disables the cache.
	APICacheDir string `yaml:"apiCacheDir"`
	// IgnoreErrors makes the command exit successfully even with ERROR diagnostics.
	IgnoreErrors bool `yaml:"ignoreErrors"`
	// Quiet suppresses WARN diagnostics in the output.
	Quiet bool `yaml:"quiet"`
	// PrettyPrint colors the output.
	PrettyPrint bool `yaml:"prettyPrint"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Parallelism:   runtime.NumCPU(),
		LogLevel:      "warn",
	}
}

// Load reads a YAML configuration file. Absent keys keep their default.
func Load(path string) (Config, error) {
	conf := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("config %s: %w", path, err)
	}
	return conf, nil
}

// Validate checks the ranges of the numeric fields and the log level.
func (c Config) Validate() error {
	var errs []error
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("maxIterations must be positive, got %d", c.MaxIterations))
	}
	if c.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("parallelism must be positive, got %d", c.Parallelism))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the zap level of LogLevel. An empty level is "warn".
func (c Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.WarnLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("logLevel: %w", err)
	}
	return lvl, nil
}

// IsDebugTarget reports whether statement analysis of the named method should be logged.
func (c Config) IsDebugTarget(method string) bool {
	for _, t := range c.DebugTargets {
		if t == method {
			return true
		}
	}
	return false
}
