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

package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/accumulation"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const _src = `
types:
  - name: Freezable
    fields:
      - {name: frozen, type: boolean, access: private}
      - {name: list, type: List, access: private, final: true, init: "new ArrayList()"}
    methods:
      - name: freeze
        access: public
        body:
          - if:
              cond: "frozen"
              then:
                - throw: "new IllegalStateException()"
          - expr: "frozen = true"
      - name: add
        access: public
        params: [{name: s, type: String}]
        body:
          - if:
              cond: "frozen"
              then:
                - throw: "new IllegalStateException()"
          - expr: "list.add(s)"
      - name: isFrozen
        access: public
        returns: boolean
        body:
          - return: "frozen"
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

func run(t *testing.T) (*program.Program, *accumulation.Result) {
	t.Helper()
	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse([]byte(_src), "report.yaml", store.Types())
	require.NoError(t, err)
	res, err := accumulation.Run(context.Background(), prog, store, config.Default(), nil)
	require.NoError(t, err)
	return prog, res
}

func find(t *testing.T, elements []Element, name string) []string {
	t.Helper()
	for _, e := range elements {
		if e.Name == name {
			return e.Annotations
		}
	}
	t.Fatalf("no annotations for %s in %v", name, elements)
	return nil
}

func TestAnnotations(t *testing.T) {
	t.Parallel()

	prog, res := run(t)
	elements := Annotations(prog, res)

	tests := []struct {
		element string
		want    []string
	}{
		{"T:Freezable", []string{`@E2Container(after="frozen")`}},
		{"M:Freezable.freeze", []string{"@Modified", `@Mark("frozen")`}},
		{"M:Freezable.add", []string{"@Modified", `@Only(before="frozen")`}},
		{"M:Freezable.isFrozen", []string{"@NotModified"}},
		{"F:Freezable.frozen", []string{"@Variable"}},
		{"T:Constants", []string{"@E2Container"}},
		{"F:Constants.limit", []string{"@Final", `@Constant("10")`}},
		{"M:Constants.getLimit", []string{"@NotModified", `@Constant("10")`}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, find(t, elements, tt.element), tt.element)
	}
	require.Contains(t, find(t, elements, "F:Freezable.list"), "@Final")
	require.Contains(t, find(t, elements, "F:Freezable.list"), "@Modified")
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	prog, res := run(t)
	want := NewSnapshot(prog, res, res.Diagnostics)
	require.NotEmpty(t, want.Elements)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, want))
	got, err := Decode(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot differs after decoding (-want +got):\n%s", diff)
	}

	data, err := Marshal(want)
	require.NoError(t, err)
	again, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, want.Elements, again.Elements)
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("not a snapshot")))
	require.ErrorContains(t, err, "decode snapshot")
}
