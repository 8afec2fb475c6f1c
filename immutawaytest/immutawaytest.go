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

// Package immutawaytest runs golden test cases. A case is a program file
// <dir>/src/<case>/<case>.yaml whose "want" block lists the expected findings and annotations:
//
//	want:
//	  diagnostics:
//	    - "ERROR in M:locals:2: Unused local variable"
//	  annotations:
//	    T:Freezable: ['@E2Container(after="frozen")']
//	  error: "no fixed point"
//
// Every listed diagnostic must be the prefix of a reported one. With "exhaustive: true" every
// reported diagnostic must be listed too. Annotations are compared exactly for the listed elements
// only. A "config" block overrides the default configuration.
package immutawaytest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/report"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

// Want is the expectation block of a case.
type Want struct {
	Diagnostics []string            `yaml:"diagnostics"`
	Exhaustive  bool                `yaml:"exhaustive"`
	Annotations map[string][]string `yaml:"annotations"`
	// Error is a substring of the expected error; empty means the run must succeed.
	Error string `yaml:"error"`
}

type caseFile struct {
	Want   Want      `yaml:"want"`
	Config yaml.Node `yaml:"config"`
}

// Run executes the named cases under dir, each as a parallel subtest.
func Run(t *testing.T, dir string, cases ...string) {
	t.Helper()
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			runCase(t, filepath.Join(dir, "src", name, name+".yaml"))
		})
	}
}

func runCase(t *testing.T, path string) {
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cf caseFile
	require.NoError(t, yaml.Unmarshal(data, &cf), "decode want block")
	conf := config.Default()
	if !cf.Config.IsZero() {
		require.NoError(t, cf.Config.Decode(&conf), "decode config block")
	}

	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse(data, path, store.Types())
	require.NoError(t, err)

	res, err := immutaway.Analyze(context.Background(), prog,
		immutaway.WithConfig(conf),
		immutaway.WithAPI(store),
		immutaway.WithLogger(zaptest.NewLogger(t)))
	if cf.Want.Error != "" {
		require.ErrorContains(t, err, cf.Want.Error)
		return
	}
	require.NoError(t, err)

	var got []string
	for _, d := range res.Diagnostics {
		got = append(got, d.String())
	}
	matched := make([]bool, len(got))
	for _, want := range cf.Want.Diagnostics {
		found := false
		for i, g := range got {
			if strings.HasPrefix(g, want) {
				found, matched[i] = true, true
			}
		}
		require.True(t, found, "missing diagnostic %q, got:\n%s", want, strings.Join(got, "\n"))
	}
	if cf.Want.Exhaustive {
		for i, g := range got {
			require.True(t, matched[i], "unexpected diagnostic %q", g)
		}
	}

	actual := make(map[string][]string)
	for _, e := range report.Annotations(prog, res) {
		actual[e.Name] = e.Annotations
	}
	for element, want := range cf.Want.Annotations {
		if diff := cmp.Diff(want, actual[element]); diff != "" {
			t.Errorf("annotations of %s differ (-want +got):\n%s", element, diff)
		}
	}
}
