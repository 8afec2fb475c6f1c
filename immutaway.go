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

// Package immutaway is the entry point of the analyser. It loads programs against the library
// contracts, runs the analysis and renders its findings.
package immutaway

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/immutaway/accumulation"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/util"
	"go.uber.org/zap"
)

type options struct {
	conf   config.Config
	logger *zap.Logger
	api    *annotatedapi.Store
}

// Option configures Analyze.
type Option func(*options)

// WithConfig sets the configuration; the default is config.Default().
func WithConfig(conf config.Config) Option {
	return func(o *options) { o.conf = conf }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAPI sets the library contracts the program was loaded against. Without it, the embedded
// contracts are used.
func WithAPI(api *annotatedapi.Store) Option {
	return func(o *options) { o.api = api }
}

// Analyze runs the analysis over a resolved program.
func Analyze(ctx context.Context, prog *program.Program, opts ...Option) (*accumulation.Result, error) {
	o := options{conf: config.Default(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.api == nil {
		types, err := annotatedapi.Default()
		if err != nil {
			return nil, err
		}
		o.api = annotatedapi.NewStore(types)
	}
	return accumulation.Run(ctx, prog, o.api, o.conf, o.logger)
}

// LoadProgram reads program files and resolves them together against the library contracts.
// Errors of all files are reported at once.
func LoadProgram(api *annotatedapi.Store, paths ...string) (*program.Program, error) {
	var (
		types []*program.Type
		errs  []error
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read program: %w", err))
			continue
		}
		decoded, err := program.DecodeTypes(data, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		types = append(types, decoded...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	prog := program.NewProgram(types, api.Types())
	if err := program.Resolve(prog); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	return prog, nil
}

// PrettyPrint renders a diagnostic with terminal colors.
func PrettyPrint(d diagnostic.Diagnostic) string {
	return util.PrettyPrintErrorMessage(d.String())
}

// HasErrors reports whether any diagnostic has ERROR severity.
func HasErrors(diags []diagnostic.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity() == diagnostic.Error {
			return true
		}
	}
	return false
}
