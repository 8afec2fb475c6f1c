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

package util

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareIndex(t *testing.T) {
	t.Parallel()

	ordered := []string{"", "0", "0-E", "1", "1.0.0", "1.0.0-E", "1.0.1", "1.1.0", "2", "10"}
	shuffled := []string{"10", "1.1.0", "0-E", "2", "1.0.0-E", "", "1", "1.0.1", "0", "1.0.0"}
	slices.SortFunc(shuffled, CompareIndex)
	require.Equal(t, ordered, shuffled)

	require.Zero(t, CompareIndex("3.0.1", "3.0.1"))
	require.Negative(t, CompareIndex("3.0.1", "3.0.10"))
	require.Positive(t, CompareIndex("3-E", "3"))
}

func TestIndices(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1.0.0", StatementIndex(1, 0, 0))
	require.Equal(t, "3", ChildIndex("", 3))
	require.Equal(t, "1.0.2", ChildIndex(BlockPrefix("1", 0), 2))
	require.Equal(t, "4.1.0", NestedIndex("4", 1, 0))
	require.True(t, IsPrefixIndex("1", "1.0.0"))
	require.True(t, IsPrefixIndex("", "7"))
	require.False(t, IsPrefixIndex("1", "10.0.0"))
}

func TestPrettyPrintErrorMessage(t *testing.T) {
	t.Parallel()

	out := PrettyPrintErrorMessage("ERROR in M:method1:3: Unused local variable: `x`")
	require.Contains(t, out, "\x1b[31mERROR\x1b[0m")
	require.Contains(t, out, "\u001B[36mM:method1:3\u001B[0m")
	require.Contains(t, out, "\u001B[95m`x`\u001B[0m")

	warn := PrettyPrintErrorMessage("WARN in P:p: Unused parameter")
	require.Contains(t, warn, "\x1b[33mWARN\x1b[0m")
}
