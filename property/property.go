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

// Package property defines the lattice of analysis properties: the keys, their levels, the merge
// operator of each key, and the single-assignment slots in which analysis results are published.
package property

import (
	"fmt"
	"strconv"
)

// Property is a key of the analysis, e.g. the nullability of an expression or the immutability of
// a type.
type Property int

// The properties computed by the analyser.
const (
	NotNullExpression Property = iota
	NotNullParameter
	ContextNotNull
	ExternalNotNull
	ContextModified
	Modified
	ModifiedVariable
	ModifiedOutsideMethod
	Immutable
	Final
	Independent
	Container
	Constant
	Identity
	Fluent
	Size
	Read
	Assigned

	numProperties
)

// MergeOp is the operator used to combine the values of one property computed along different
// execution paths.
type MergeOp int

// The available merge operators.
const (
	MergeMin MergeOp = iota
	MergeMax
	MergeAnd
	MergeOr
	MergeSize
)

type valueKind int

const (
	kindBool valueKind = iota
	kindNotNull
	kindImmutable
	kindSize
	kindCount
)

type definition struct {
	name   string
	merge  MergeOp
	kind   valueKind
	absent DV
}

// _definitions lists the merge operator of every property explicitly. "read" is an AND across
// paths, "assigned" counts and takes the MAX, not-null takes the MIN over all paths.
var _definitions = [numProperties]definition{
	NotNullExpression:     {"NOT_NULL_EXPRESSION", MergeMin, kindNotNull, Nullable},
	NotNullParameter:      {"NOT_NULL_PARAMETER", MergeMin, kindNotNull, Nullable},
	ContextNotNull:        {"CONTEXT_NOT_NULL", MergeMin, kindNotNull, Nullable},
	ExternalNotNull:       {"EXTERNAL_NOT_NULL", MergeMin, kindNotNull, Nullable},
	ContextModified:       {"CONTEXT_MODIFIED", MergeMax, kindBool, False},
	Modified:              {"MODIFIED_METHOD", MergeOr, kindBool, False},
	ModifiedVariable:      {"MODIFIED_VARIABLE", MergeOr, kindBool, False},
	ModifiedOutsideMethod: {"MODIFIED_OUTSIDE_METHOD", MergeOr, kindBool, False},
	Immutable:             {"IMMUTABLE", MergeMin, kindImmutable, Mutable},
	Final:                 {"FINAL", MergeAnd, kindBool, False},
	Independent:           {"INDEPENDENT", MergeAnd, kindBool, False},
	Container:             {"CONTAINER", MergeAnd, kindBool, False},
	Constant:              {"CONSTANT", MergeAnd, kindBool, False},
	Identity:              {"IDENTITY", MergeAnd, kindBool, False},
	Fluent:                {"FLUENT", MergeAnd, kindBool, False},
	Size:                  {"SIZE", MergeSize, kindSize, SizeMin(0)},
	Read:                  {"READ", MergeAnd, kindBool, False},
	Assigned:              {"ASSIGNED", MergeMax, kindCount, 0},
}

// All returns every property in declaration order.
func All() []Property {
	all := make([]Property, numProperties)
	for i := range all {
		all[i] = Property(i)
	}
	return all
}

func (p Property) String() string {
	if p < 0 || p >= numProperties {
		return "Property(" + strconv.Itoa(int(p)) + ")"
	}
	return _definitions[p].name
}

// MergeOp returns the merge operator of the property.
func (p Property) MergeOp() MergeOp { return _definitions[p].merge }

// Absent returns the level that holds when nothing indicates otherwise, e.g. NULLABLE for
// nullability or FALSE for context modification.
func (p Property) Absent() DV { return _definitions[p].absent }

// Merge combines the levels of the property along two execution paths. During intermediate
// computation a Delay on either side makes the result Delay.
func (p Property) Merge(a, b DV) DV {
	if a == Delay || b == Delay {
		return Delay
	}
	switch _definitions[p].merge {
	case MergeMin:
		return min(a, b)
	case MergeMax:
		return max(a, b)
	case MergeAnd:
		return Bool(a == True && b == True)
	case MergeOr:
		return Bool(a == True || b == True)
	case MergeSize:
		return mergeSize(a, b)
	default:
		panic(fmt.Sprintf("no merge operator for %s", p))
	}
}

// MergeAll folds Merge over the levels. With no levels it returns the absent level.
func (p Property) MergeAll(values ...DV) DV {
	if len(values) == 0 {
		return p.Absent()
	}
	result := values[0]
	for _, v := range values[1:] {
		result = p.Merge(result, v)
	}
	return result
}

// Format renders a level of this property.
func (p Property) Format(v DV) string {
	if v == Delay {
		return "<delayed>"
	}
	switch _definitions[p].kind {
	case kindBool:
		if v == True {
			return "true"
		}
		return "false"
	case kindNotNull:
		if int(v) < len(_notNullNames) && _notNullNames[v] != "" {
			return _notNullNames[v]
		}
	case kindImmutable:
		if int(v) < len(_immutableNames) {
			return _immutableNames[v]
		}
	case kindSize:
		return formatSize(v)
	case kindCount:
		return strconv.Itoa(int(v))
	}
	return strconv.Itoa(int(v))
}
