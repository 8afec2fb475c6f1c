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

package diagnostic

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway/program"
)

func testMethod() *program.Method {
	return &program.Method{Owner: &program.Type{Name: "M", Package: "org.example"}, Name: "method1"}
}

func TestRendering(t *testing.T) {
	t.Parallel()

	m := testMethod()
	d := Diagnostic{Kind: ConditionEvaluatesToConstant, Location: AtMethod(m, "3")}
	require.Equal(t, "ERROR in M:method1:3: Condition in 'if' or 'switch' statement evaluates to constant", d.String())

	f := &program.Field{Owner: m.Owner, Name: "frozen"}
	w := Diagnostic{Kind: PrivateFieldNotRead, Location: AtField(f), Detail: "frozen"}
	require.Equal(t, "ERROR in F:frozen: Private field is not read: `frozen`", w.String())

	p := &program.Parameter{Owner: m, Name: "p"}
	require.Equal(t, "WARN in P:p: Unused parameter", Diagnostic{Kind: UnusedParameter, Location: AtParameter(p)}.String())
}

func TestEngineDeduplicatesAndSorts(t *testing.T) {
	t.Parallel()

	m := testMethod()
	e := NewEngine()
	require.True(t, e.Add(Diagnostic{Kind: UnreachableStatement, Location: AtMethod(m, "10")}))
	require.True(t, e.Add(Diagnostic{Kind: DivisionByZero, Location: AtMethod(m, "1.0.0")}))
	require.True(t, e.Add(Diagnostic{Kind: UnreachableStatement, Location: AtMethod(m, "2")}))
	require.False(t, e.Add(Diagnostic{Kind: UnreachableStatement, Location: AtMethod(m, "2")}), "duplicates are dropped")
	require.True(t, e.Add(Diagnostic{Kind: ConditionEvaluatesToConstant, Location: AtMethod(m, "2")}))
	require.True(t, e.Add(Diagnostic{Kind: CircularTypeDependency, Location: AtType(m.Owner)}))

	var got []string
	for _, d := range e.Diagnostics() {
		got = append(got, d.Location.String()+" "+d.Kind.String())
	}
	want := []string{
		"T:M CIRCULAR_TYPE_DEPENDENCY",
		"M:method1:1.0.0 DIVISION_BY_ZERO",
		"M:method1:2 CONDITION_EVALUATES_TO_CONSTANT",
		"M:method1:2 UNREACHABLE_STATEMENT",
		"M:method1:10 UNREACHABLE_STATEMENT",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
	require.True(t, e.Has(DivisionByZero, AtMethod(m, "1.0.0")))
	require.Equal(t, 4, Count(e.Diagnostics(), Error))
}

func TestMergeConcurrently(t *testing.T) {
	t.Parallel()

	m := testMethod()
	total := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cluster := NewEngine()
			cluster.Add(Diagnostic{Kind: UnusedLocalVariable, Location: AtMethod(m, "0"), Detail: "x"})
			total.Merge(cluster)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, total.Len())
}

func TestKindCatalogue(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		require.NotEmpty(t, k.Message(), k.String())
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}
	_, ok := ParseKind("NO_SUCH_KIND")
	require.False(t, ok)
	require.Equal(t, Warn, PotentialNullPointerException.Severity())
}

func TestTruncatePosition(t *testing.T) {
	t.Parallel()

	require.Equal(t, "src/Freezable.yaml:3:5", TruncatePosition(program.Pos{File: "/a/b/src/Freezable.yaml", Line: 3, Col: 5}))
	require.Equal(t, "2:1", TruncatePosition(program.Pos{Line: 2, Col: 1}))
}
