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

package immutaway_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/immutawaytest"
	"go.uber.org/immutaway/property"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGolden(t *testing.T) {
	t.Parallel()

	immutawaytest.Run(t, "testdata", "basics", "freezable", "constants", "cycle", "limit", "suppressed", "eventual")
}

func TestLoadProgram(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "shape.yaml")
	second := filepath.Join(dir, "square.yaml")
	require.NoError(t, os.WriteFile(first, []byte(`
types:
  - name: Shape
    fields:
      - {name: side, type: int, access: private, final: true, init: "2"}
    methods:
      - name: area
        access: public
        returns: int
        body:
          - return: "side * side"
`), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(`
types:
  - name: Square
    fields:
      - {name: shape, type: Shape, access: private, final: true, init: "new Shape()"}
    methods:
      - name: area
        access: public
        returns: int
        body:
          - return: "shape.area()"
`), 0o600))

	types, err := annotatedapi.Default()
	require.NoError(t, err)
	api := annotatedapi.NewStore(types)
	prog, err := immutaway.LoadProgram(api, first, second)
	require.NoError(t, err)
	require.NotNil(t, prog.LookupType("Shape"))
	require.NotNil(t, prog.LookupType("Square"))

	res, err := immutaway.Analyze(context.Background(), prog, immutaway.WithAPI(api))
	require.NoError(t, err)
	area := prog.LookupType("Shape").Methods[0]
	require.Equal(t, property.False, res.Method(area).Props.Get(property.Modified))
}

func TestLoadProgramErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("types: [name: {"), 0o600))

	types, err := annotatedapi.Default()
	require.NoError(t, err)
	_, err = immutaway.LoadProgram(annotatedapi.NewStore(types), broken, filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "broken.yaml")
	require.ErrorContains(t, err, "read program")
}

func TestHasErrors(t *testing.T) {
	t.Parallel()

	warn := diagnostic.Diagnostic{Kind: diagnostic.UnusedParameter}
	err := diagnostic.Diagnostic{Kind: diagnostic.DivisionByZero}
	require.False(t, immutaway.HasErrors(nil))
	require.False(t, immutaway.HasErrors([]diagnostic.Diagnostic{warn}))
	require.True(t, immutaway.HasErrors([]diagnostic.Diagnostic{warn, err}))
}

func TestPrettyPrint(t *testing.T) {
	t.Parallel()

	d := diagnostic.Diagnostic{
		Kind:     diagnostic.UnusedLocalVariable,
		Location: diagnostic.Location{Element: diagnostic.MethodElement, Name: "locals", Index: "2"},
		Detail:   "y",
	}
	require.Equal(t, "ERROR in M:locals:2: Unused local variable: `y`", d.String())
	out := immutaway.PrettyPrint(d)
	require.Contains(t, out, "\x1b[31mERROR\x1b[0m")
	require.Contains(t, out, "\u001B[95m`y`\u001B[0m")
}
