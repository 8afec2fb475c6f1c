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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const _divide = `
types:
  - name: Divide
    methods:
      - name: divide
        returns: int
        params: [{name: p, type: int}]
        body:
          - local: {name: i, type: int, init: "0"}
          - return: "p / i"
`

const _constants = `
types:
  - name: Constants
    fields:
      - {name: limit, type: int, access: private, final: true, init: "10"}
    methods:
      - name: getLimit
        access: public
        returns: int
        body:
          - return: "limit"
`

const _empty = `
types:
  - name: Empty
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExitCodes(t *testing.T) {
	t.Parallel()

	divide := write(t, "divide.yaml", _divide)
	empty := write(t, "empty.yaml", _empty)
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"clean", []string{empty}, _exitClean},
		{"errors", []string{divide}, _exitFound},
		{"ignored errors", []string{"-ignore-errors", divide}, _exitClean},
		{"no programs", nil, _exitUsage},
		{"missing program", []string{filepath.Join(t.TempDir(), "missing.yaml")}, _exitUsage},
		{"bad flag", []string{"-no-such-flag", empty}, _exitUsage},
		{"bad parallelism", []string{"-parallelism", "-1", empty}, _exitUsage},
		{"help", []string{"-h"}, _exitClean},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			require.Equal(t, tt.want, run(context.Background(), tt.args, &stdout, &stderr), stderr.String())
		})
	}
}

func TestOutput(t *testing.T) {
	t.Parallel()

	divide := write(t, "divide.yaml", _divide)
	var stdout, stderr bytes.Buffer
	require.Equal(t, _exitFound, run(context.Background(), []string{divide}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "divide.yaml:")
	require.Contains(t, stdout.String(), "ERROR in M:divide:1: Division by zero")
	require.NotContains(t, stdout.String(), "\x1b[")
}

func TestAnnotationsAndSnapshot(t *testing.T) {
	t.Parallel()

	constants := write(t, "constants.yaml", _constants)
	snapshot := filepath.Join(t.TempDir(), "out.s2")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-annotations", "-ignore-errors", "-snapshot", snapshot, constants}, &stdout, &stderr)
	require.Equal(t, _exitClean, code, stderr.String())
	require.Contains(t, stdout.String(), `F:Constants.limit @Final @Constant("10")`)

	file, err := os.Open(snapshot)
	require.NoError(t, err)
	defer file.Close()
	s, err := report.Decode(file)
	require.NoError(t, err)
	require.Contains(t, s.Elements, report.Element{Name: "F:Constants.limit", Annotations: []string{"@Final", `@Constant("10")`}})
}

func TestConfigFile(t *testing.T) {
	t.Parallel()

	divide := write(t, "divide.yaml", _divide)
	conf := write(t, "immutaway.yaml", "ignoreErrors: true\nparallelism: 1\n")
	var stdout, stderr bytes.Buffer
	require.Equal(t, _exitClean, run(context.Background(), []string{"-config", conf, divide}, &stdout, &stderr))

	stdout.Reset()
	require.Equal(t, _exitFound, run(context.Background(), []string{"-config", conf, "-ignore-errors=false", divide}, &stdout, &stderr))
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	require.Nil(t, splitList(""))
}
