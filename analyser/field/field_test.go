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

package field_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/accumulation"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const _src = `
types:
  - name: Holder
    fields:
      - {name: counter, type: int, access: public}
      - {name: base, type: int, access: private, init: "5"}
      - {name: unused, type: int, access: private, final: true, init: "1"}
      - {name: items, type: List, access: private, final: true, init: "new ArrayList()"}
    methods:
      - name: bump
        access: public
        body:
          - expr: "counter = counter + 1"
      - name: getBase
        access: public
        returns: int
        body:
          - return: "base"
      - name: add
        access: public
        params: [{name: s, type: String}]
        body:
          - expr: "items.add(s)"
  - name: Box
    fields:
      - {name: content, type: List, access: private, final: true}
    methods:
      - name: Box
        constructor: true
        access: public
        params: [{name: content, type: List}]
        body:
          - expr: "this.content = content"
      - name: get
        access: public
        returns: List
        body:
          - return: "content"
  - name: Action
    interface: true
    methods:
      - {name: act, abstract: true, access: public}
  - name: Reader
    interface: true
    methods:
      - {name: look, abstract: true, access: public, returns: int, annotations: [NotModified]}
  - name: Panel
    fields:
      - {name: hits, type: int, access: private}
      - {name: onClick, type: Action, access: private, final: true, init: "() -> hits = hits + 1"}
      - {name: onShow, type: Action, access: private, final: true, init: "this::peek"}
      - {name: onHide, type: Action, access: private}
      - {name: viewer, type: Reader, access: private}
    methods:
      - name: peek
        access: public
        returns: int
        body:
          - return: "hits"
      - name: fire
        access: public
        body:
          - expr: "onClick.act()"
          - expr: "onShow.act()"
          - expr: "onHide.act()"
      - name: look
        access: public
        returns: int
        body:
          - return: "viewer.look()"
      - name: setHide
        access: public
        params: [{name: a, type: Action}]
        body:
          - expr: "onHide = a"
      - name: setViewer
        access: public
        params: [{name: r, type: Reader}]
        body:
          - expr: "viewer = r"
`

type fixture struct {
	prog *program.Program
	res  *accumulation.Result
}

func setup(t *testing.T) *fixture {
	t.Helper()
	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse([]byte(_src), "fields.yaml", store.Types())
	require.NoError(t, err)
	res, err := accumulation.Run(context.Background(), prog, store, config.Default(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return &fixture{prog: prog, res: res}
}

func (f *fixture) field(t *testing.T, typ, name string) (*program.Field, property.DV) {
	t.Helper()
	fld := f.prog.LookupType(typ).Field(name)
	require.NotNil(t, fld, "%s.%s", typ, name)
	return fld, f.res.Field(fld).Props.Get(property.Final)
}

func (f *fixture) has(kind diagnostic.Kind, loc diagnostic.Location) bool {
	for _, d := range f.res.Diagnostics {
		if d.Kind == kind && d.Location == loc {
			return true
		}
	}
	return false
}

func TestFinal(t *testing.T) {
	t.Parallel()

	f := setup(t)
	tests := []struct {
		typ, field string
		want       property.DV
	}{
		{"Holder", "counter", property.False},
		{"Holder", "base", property.True},
		{"Holder", "unused", property.True},
		{"Holder", "items", property.True},
		{"Box", "content", property.True},
	}
	for _, tt := range tests {
		_, final := f.field(t, tt.typ, tt.field)
		require.Equal(t, tt.want, final, tt.field)
	}

	counter, _ := f.field(t, "Holder", "counter")
	require.True(t, f.has(diagnostic.NonPrivateFieldNotFinal, diagnostic.AtField(counter)))
	base, _ := f.field(t, "Holder", "base")
	require.False(t, f.has(diagnostic.NonPrivateFieldNotFinal, diagnostic.AtField(base)))
}

func TestEffectiveValue(t *testing.T) {
	t.Parallel()

	f := setup(t)
	base, _ := f.field(t, "Holder", "base")
	fa := f.res.Field(base)
	require.Equal(t, property.True, fa.Props.Get(property.Constant))
	require.True(t, value.Equal(value.NewInt(5), fa.EffectiveValue.MustGet()))

	counter, _ := f.field(t, "Holder", "counter")
	require.Equal(t, property.False, f.res.Field(counter).Props.Get(property.Constant))
}

func TestModifiedOutsideMethod(t *testing.T) {
	t.Parallel()

	f := setup(t)
	items, _ := f.field(t, "Holder", "items")
	require.Equal(t, property.True, f.res.Field(items).Props.Get(property.ModifiedOutsideMethod))

	content, _ := f.field(t, "Box", "content")
	require.Equal(t, property.False, f.res.Field(content).Props.Get(property.ModifiedOutsideMethod))
}

func TestRead(t *testing.T) {
	t.Parallel()

	f := setup(t)
	unused, _ := f.field(t, "Holder", "unused")
	require.Equal(t, property.False, f.res.Field(unused).Props.Get(property.Read))
	require.True(t, f.has(diagnostic.PrivateFieldNotRead, diagnostic.AtField(unused)))

	base, _ := f.field(t, "Holder", "base")
	require.Equal(t, property.True, f.res.Field(base).Props.Get(property.Read))
	require.False(t, f.has(diagnostic.PrivateFieldNotRead, diagnostic.AtField(base)))
}

func TestLinked(t *testing.T) {
	t.Parallel()

	f := setup(t)
	content, _ := f.field(t, "Box", "content")
	require.Equal(t, []string{"content"}, f.res.Field(content).Linked.MustGet())

	items, _ := f.field(t, "Holder", "items")
	require.Empty(t, f.res.Field(items).Linked.MustGet())
}

func TestFunctionalFields(t *testing.T) {
	t.Parallel()

	f := setup(t)
	tests := []struct {
		field string
		want  property.DV
	}{
		{"onClick", property.True},
		{"onShow", property.False},
		{"onHide", property.True},
		{"viewer", property.False},
	}
	for _, tt := range tests {
		fld, _ := f.field(t, "Panel", tt.field)
		require.Equal(t, tt.want, f.res.Field(fld).Props.Get(property.Modified), tt.field)
	}

	hits, _ := f.field(t, "Panel", "hits")
	require.False(t, f.res.Field(hits).Props.IsSet(property.Modified))
}
