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

package orderedmap_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/util/orderedmap"
)

func TestLoadStore(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	m.Store("array[0]", 12)
	m.Store("array[1]", 13)
	m.Store("array[0]", 14)

	v, ok := m.Load("array[0]")
	require.True(t, ok)
	require.Equal(t, 14, v)
	require.Equal(t, 13, m.Value("array[1]"))

	_, ok = m.Load("array[2]")
	require.False(t, ok)
	require.Zero(t, m.Value("array[2]"))

	require.Equal(t, 2, m.Len())
	require.Equal(t, []string{"array[0]", "array[1]"}, m.Keys(), "re-storing keeps the original position")
}

func TestDeleteAndCopy(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, string]()
	for _, k := range []string{"a", "b", "c"} {
		m.Store(k, k+k)
	}
	c := m.Copy()
	m.Delete("b")
	m.Delete("missing")

	require.Equal(t, []string{"a", "c"}, m.Keys())
	require.Equal(t, []string{"a", "b", "c"}, c.Keys())
	c.Store("d", "dd")
	require.Equal(t, 2, m.Len())
	require.Equal(t, 4, c.Len())
}

func TestOrderedRange(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	expected := make([]int, 0, 100)
	for i := 99; i >= 0; i-- {
		m.Store(i, i+1)
		expected = append(expected, i)
	}

	for i := 0; i < 5; i++ {
		t.Run(fmt.Sprintf("Run%d", i), func(t *testing.T) {
			t.Parallel()

			var keys []int
			m.OrderedRange(func(key int, value int) bool {
				require.Equal(t, key+1, value)
				keys = append(keys, key)
				return true
			})
			require.Equal(t, expected, keys)
		})
	}

	var first []int
	m.OrderedRange(func(key int, _ int) bool {
		first = append(first, key)
		return len(first) < 3
	})
	require.Equal(t, []int{99, 98, 97}, first)
}

func TestGobEncoding(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, []string]()
	m.Store("T.freeze()", []string{"@Mark(\"frozen\")", "@Modified"})
	m.Store("T.frozen", []string{"@Final"})

	b, err := m.GobEncode()
	require.NoError(t, err)
	require.NotEmpty(t, b)

	again, err := m.GobEncode()
	require.NoError(t, err)
	require.Equal(t, b, again, "encoding is deterministic")

	decoded := orderedmap.New[string, []string]()
	require.NoError(t, decoded.GobDecode(b))
	require.Equal(t, m.Keys(), decoded.Keys())
	require.Equal(t, []string{"@Final"}, decoded.Value("T.frozen"))

	var zero orderedmap.OrderedMap[string, int]
	require.NoError(t, zero.GobDecode(nil))
	require.Zero(t, zero.Len())
}

func TestGobEncode_Empty(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	b, err := m.GobEncode()
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
