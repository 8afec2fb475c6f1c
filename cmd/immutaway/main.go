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

// main package builds the analyser as a standalone command: it loads program files, runs the
// analysis and prints the diagnostics, optionally with the computed annotations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/immutaway"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/report"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	_exitClean = 0
	_exitFound = 1
	_exitUsage = 2
)

type flags struct {
	config        string
	maxIterations int
	parallelism   int
	debug         string
	api           string
	apiCache      string
	ignoreErrors  bool
	quiet         bool
	annotations   bool
	snapshot      string
	pretty        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("immutaway", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: immutaway [flags] program.yaml...")
		fs.PrintDefaults()
	}
	var f flags
	fs.StringVar(&f.config, "config", "", "YAML configuration file; flags override its values.")
	fs.IntVar(&f.maxIterations, "max-iterations", 0, "Maximum number of iterations of the fixed-point computation.")
	fs.IntVar(&f.parallelism, "parallelism", 0, "Number of clusters analysed concurrently.")
	fs.StringVar(&f.debug, "debug", "", "Comma-separated method names whose statement analysis is logged.")
	fs.StringVar(&f.api, "api", "", "Comma-separated contract files loaded in addition to the embedded ones.")
	fs.StringVar(&f.apiCache, "api-cache", "", "Directory caching the parsed contracts.")
	fs.BoolVar(&f.ignoreErrors, "ignore-errors", false, "Exit successfully even when errors are found.")
	fs.BoolVar(&f.quiet, "quiet", false, "Do not print warnings.")
	fs.BoolVar(&f.annotations, "annotations", false, "Print the computed annotations of every element.")
	fs.StringVar(&f.snapshot, "snapshot", "", "Write a compressed snapshot of the results to this file.")
	fs.BoolVar(&f.pretty, "pretty", false, "Color the output; the default is on when standard output is a terminal.")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return _exitClean
		}
		return _exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return _exitUsage
	}

	conf, err := configure(fs, &f, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return _exitUsage
	}
	logger, err := config.NewLogger(conf)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return _exitUsage
	}
	defer logger.Sync() //nolint:errcheck

	api, err := annotatedapi.Load(&conf, logger)
	if err != nil {
		logger.Error("cannot load contracts", zap.Error(err))
		return _exitUsage
	}
	prog, err := immutaway.LoadProgram(api, fs.Args()...)
	if err != nil {
		logger.Error("cannot load program", zap.Error(err))
		return _exitUsage
	}
	res, err := immutaway.Analyze(ctx, prog,
		immutaway.WithConfig(conf),
		immutaway.WithAPI(api),
		immutaway.WithLogger(logger))
	if err != nil {
		logger.Error("analysis failed", zap.Error(err))
		return _exitUsage
	}

	for _, d := range res.Diagnostics {
		if conf.Quiet && d.Severity() == diagnostic.Warn {
			continue
		}
		fmt.Fprintln(stdout, render(d, conf.PrettyPrint))
	}
	if f.annotations {
		for _, e := range report.Annotations(prog, res) {
			fmt.Fprintf(stdout, "%s %s\n", e.Name, strings.Join(e.Annotations, " "))
		}
	}
	if f.snapshot != "" {
		if err := writeSnapshot(f.snapshot, report.NewSnapshot(prog, res, res.Diagnostics)); err != nil {
			logger.Error("cannot write snapshot", zap.Error(err))
			return _exitUsage
		}
	}

	if immutaway.HasErrors(res.Diagnostics) && !conf.IgnoreErrors {
		return _exitFound
	}
	return _exitClean
}

// configure loads the configuration file, if any, and applies the flags that were set.
func configure(fs *flag.FlagSet, f *flags, stdout io.Writer) (config.Config, error) {
	conf := config.Default()
	if f.config != "" {
		var err error
		if conf, err = config.Load(f.config); err != nil {
			return conf, err
		}
	}
	if out, ok := stdout.(*os.File); ok && term.IsTerminal(int(out.Fd())) {
		conf.PrettyPrint = true
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "max-iterations":
			conf.MaxIterations = f.maxIterations
		case "parallelism":
			conf.Parallelism = f.parallelism
		case "debug":
			conf.DebugTargets = splitList(f.debug)
			conf.LogLevel = "debug"
		case "api":
			conf.AnnotatedAPIs = append(conf.AnnotatedAPIs, splitList(f.api)...)
		case "api-cache":
			conf.APICacheDir = f.apiCache
		case "ignore-errors":
			conf.IgnoreErrors = f.ignoreErrors
		case "quiet":
			conf.Quiet = f.quiet
		case "pretty":
			conf.PrettyPrint = f.pretty
		}
	})
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid flags: %w", err)
	}
	return conf, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func render(d diagnostic.Diagnostic, pretty bool) string {
	msg := d.String()
	if pretty {
		msg = immutaway.PrettyPrint(d)
	}
	if pos := d.Position(); pos != "" {
		msg = pos + ": " + msg
	}
	return msg
}

func writeSnapshot(path string, s *report.Snapshot) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return report.Encode(file, s)
}
