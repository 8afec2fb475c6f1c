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

import "strconv"

// DV is a level on the partial order of a single Property. The meaning of a level depends on the
// property it belongs to, see Property.Format.
type DV int

// Delay is the sentinel for "not yet known". It sorts below every concrete level and must never be
// mistaken for False or any other concrete value.
const Delay DV = -1

// Boolean levels.
const (
	False DV = 0
	True  DV = 1
)

// Not-null levels.
const (
	Nullable           DV = 1
	EffectivelyNotNull DV = 2
	ContentNotNull     DV = 3
)

// Immutability levels, ordered from weakest to strongest.
const (
	Mutable      DV = 0
	EventuallyE1 DV = 1
	E1           DV = 2
	EventuallyE2 DV = 3
	E2           DV = 4
)

// IsDelayed reports whether the level is the Delay sentinel.
func (v DV) IsDelayed() bool { return v == Delay }

// Bool converts a Go bool into a boolean level.
func Bool(b bool) DV {
	if b {
		return True
	}
	return False
}

// IsTrue reports whether a boolean level is True. Delay is not true.
func (v DV) IsTrue() bool { return v == True }

// IsFalse reports whether a boolean level is False. Delay is not false.
func (v DV) IsFalse() bool { return v == False }

// SizeMin encodes the restriction "size >= n".
func SizeMin(n int) DV { return DV(2 * n) }

// SizeEquals encodes the restriction "size == n".
func SizeEquals(n int) DV { return DV(2*n + 1) }

// Size decodes a size level into its bound and whether the bound is exact.
func (v DV) Size() (n int, exact bool) {
	return int(v) / 2, int(v)%2 == 1
}

// IsEventual reports whether an immutability level only holds after a mark.
func IsEventual(v DV) bool { return v == EventuallyE1 || v == EventuallyE2 }

// IsE2 reports whether an immutability level is at least EventuallyE2.
func IsE2(v DV) bool { return v >= EventuallyE2 }

func mergeSize(a, b DV) DV {
	if a == b {
		return a
	}
	na, _ := a.Size()
	nb, _ := b.Size()
	return SizeMin(min(na, nb))
}

func formatSize(v DV) string {
	n, exact := v.Size()
	if exact {
		return "==" + strconv.Itoa(n)
	}
	return ">=" + strconv.Itoa(n)
}

var _immutableNames = [...]string{
	Mutable:      "MUTABLE",
	EventuallyE1: "EVENTUALLY_E1IMMUTABLE",
	E1:           "E1IMMUTABLE",
	EventuallyE2: "EVENTUALLY_E2IMMUTABLE",
	E2:           "E2IMMUTABLE",
}

var _notNullNames = [...]string{
	Nullable:           "NULLABLE",
	EffectivelyNotNull: "EFFECTIVELY_NOT_NULL",
	ContentNotNull:     "EFFECTIVELY_CONTENT_NOT_NULL",
}
