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

package property

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		property Property
		a, b     DV
		want     DV
	}{
		{name: "not-null takes the minimum", property: NotNullExpression, a: EffectivelyNotNull, b: Nullable, want: Nullable},
		{name: "not-null on equal paths", property: ContextNotNull, a: EffectivelyNotNull, b: EffectivelyNotNull, want: EffectivelyNotNull},
		{name: "read is an and", property: Read, a: True, b: False, want: False},
		{name: "read on both paths", property: Read, a: True, b: True, want: True},
		{name: "assigned takes the maximum", property: Assigned, a: 1, b: 3, want: 3},
		{name: "context modified in one branch", property: ContextModified, a: False, b: True, want: True},
		{name: "immutable takes the minimum", property: Immutable, a: E2, b: EventuallyE2, want: EventuallyE2},
		{name: "delay wins during computation", property: NotNullExpression, a: Delay, b: EffectivelyNotNull, want: Delay},
		{name: "delay on the right", property: Modified, a: True, b: Delay, want: Delay},
		{name: "equal sizes are kept", property: Size, a: SizeEquals(3), b: SizeEquals(3), want: SizeEquals(3)},
		{name: "different sizes weaken to the lower bound", property: Size, a: SizeEquals(3), b: SizeMin(5), want: SizeMin(3)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.property.Merge(tt.a, tt.b))
		})
	}
}

func TestMergeAll(t *testing.T) {
	t.Parallel()

	require.Equal(t, Nullable, NotNullExpression.MergeAll())
	require.Equal(t, False, ContextModified.MergeAll())
	require.Equal(t, Nullable, NotNullExpression.MergeAll(ContentNotNull, EffectivelyNotNull, Nullable))
	require.Equal(t, Delay, Immutable.MergeAll(E2, Delay, E1))
}

func TestMergeOperatorsAreExplicit(t *testing.T) {
	t.Parallel()

	for _, p := range All() {
		require.NotEmpty(t, p.String(), "property %d has no definition", p)
	}
	require.Equal(t, MergeAnd, Read.MergeOp())
	require.Equal(t, MergeMax, Assigned.MergeOp())
	require.Equal(t, MergeMin, NotNullExpression.MergeOp())
}

func TestFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, "EVENTUALLY_E2IMMUTABLE", Immutable.Format(EventuallyE2))
	require.Equal(t, "EFFECTIVELY_NOT_NULL", NotNullParameter.Format(EffectivelyNotNull))
	require.Equal(t, "true", Final.Format(True))
	require.Equal(t, "==5", Size.Format(SizeEquals(5)))
	require.Equal(t, ">=2", Size.Format(SizeMin(2)))
	require.Equal(t, "<delayed>", Final.Format(Delay))
}

func TestSize(t *testing.T) {
	t.Parallel()

	n, exact := SizeEquals(4).Size()
	require.Equal(t, 4, n)
	require.True(t, exact)

	n, exact = SizeMin(0).Size()
	require.Equal(t, 0, n)
	require.False(t, exact)
}
