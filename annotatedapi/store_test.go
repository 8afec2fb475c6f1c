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

package annotatedapi

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/zap"
)

func lookup(t *testing.T, s *Store, typ, method string) *program.Method {
	t.Helper()
	for _, lt := range s.Types() {
		if lt.Name != typ {
			continue
		}
		for _, m := range lt.Methods {
			if m.Name == method {
				return m
			}
		}
	}
	t.Fatalf("no contract for %s.%s", typ, method)
	return nil
}

func TestContracts(t *testing.T) {
	t.Parallel()

	types, err := Default()
	require.NoError(t, err)
	s := NewStore(types)

	tests := []struct {
		typ, method string
		modified    property.DV
	}{
		{"List", "get", property.False},
		{"Collection", "add", property.True},
		{"String", "length", property.False},
		{"StringBuilder", "append", property.True},
		{"Objects", "requireNonNull", property.False},
		{"Iterator", "next", property.True},
	}
	for _, tt := range tests {
		ma := s.Method(lookup(t, s, tt.typ, tt.method))
		require.NotNil(t, ma)
		require.Equal(t, tt.modified, ma.Props.Get(property.Modified), "%s.%s", tt.typ, tt.method)
		require.True(t, ma.IsDone())
	}

	rnn := s.Method(lookup(t, s, "Objects", "requireNonNull"))
	require.Equal(t, property.True, rnn.Props.Get(property.Identity))
	require.Equal(t, property.EffectivelyNotNull, rnn.Params[0].Props.Get(property.NotNullParameter))
	require.Equal(t, property.True, s.Method(lookup(t, s, "StringBuilder", "append")).Props.Get(property.Fluent))

	str := s.Type(lookup(t, s, "String", "length").Owner)
	require.Equal(t, property.E2, str.Props.Get(property.Immutable))
	require.Equal(t, property.True, str.Props.Get(property.Container))

	require.Nil(t, s.Method(&program.Method{Owner: &program.Type{Name: "Mine"}}), "program methods are not library methods")
}

func TestRefinedContracts(t *testing.T) {
	t.Parallel()

	types, err := Default()
	require.NoError(t, err)
	extra, err := Parse([]byte(`
types:
  - name: List
    package: java.util
    interface: true
    annotations: [E2Container]
    methods:
      - {name: size, returns: int}
`), "extra.yaml")
	require.NoError(t, err)
	s := NewStore(append(types, extra...))
	list := lookup(t, s, "List", "size")
	require.Same(t, extra[0], list.Owner)
	require.Equal(t, property.E2, s.Type(list.Owner).Props.Get(property.Immutable))
}

func TestConcurrentMaterialisation(t *testing.T) {
	t.Parallel()

	types, err := Default()
	require.NoError(t, err)
	s := NewStore(types)
	add := lookup(t, s, "Collection", "add")

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Method(add)
		}()
	}
	wg.Wait()
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}

func TestCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	extra := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(extra, []byte("types:\n  - name: Box\n    package: org.example\n    annotations: [E2Immutable]\n"), 0o644))

	conf := config.Default()
	conf.AnnotatedAPIs = []string{extra}
	conf.APICacheDir = filepath.Join(dir, "cache")

	first, err := Load(&conf, zap.NewNop())
	require.NoError(t, err)
	entries, err := os.ReadDir(conf.APICacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	second, err := Load(&conf, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, len(first.Types()), len(second.Types()))

	var box *program.Type
	for _, typ := range second.Types() {
		if typ.Name == "Box" {
			box = typ
		}
	}
	require.NotNil(t, box)
	require.True(t, box.Library)
	require.Equal(t, property.E2, second.Type(box).Props.Get(property.Immutable))

	conf.AnnotatedAPIs = []string{filepath.Join(dir, "missing.yaml")}
	_, err = Load(&conf, zap.NewNop())
	require.ErrorIs(t, err, os.ErrNotExist)
}
