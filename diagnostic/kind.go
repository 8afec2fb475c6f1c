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

import "strconv"

// Severity is the level of a diagnostic.
type Severity int

// The severities, most severe first.
const (
	Error Severity = iota
	Warn
)

func (s Severity) String() string {
	if s == Warn {
		return "WARN"
	}
	return "ERROR"
}

// Kind is an entry of the fixed catalogue of findings.
type Kind int

// The catalogue. The order is the order in which findings at the same location are listed.
const (
	ConditionEvaluatesToConstant Kind = iota
	UnreachableStatement
	DivisionByZero
	NullPointerException
	PotentialNullPointerException
	AssignmentToSelf
	ParameterShouldNotBeAssignedTo
	AssertEvaluatesToConstantTrue
	LoopWithoutModification
	EmptyLoop
	CallingModifyingMethodOnE2Immutable
	EventualBeforeRequired
	EventualAfterRequired
	ModificationNotAllowed
	IgnoringResultOfMethodCall
	UselessAssignment
	UnusedLocalVariable
	UnusedParameter
	MethodShouldBeMarkedStatic
	NonPrivateFieldNotFinal
	PrivateFieldNotRead
	CircularTypeDependency

	numKinds
)

type kindInfo struct {
	name     string
	severity Severity
	message  string
}

var _kinds = [numKinds]kindInfo{
	ConditionEvaluatesToConstant:        {"CONDITION_EVALUATES_TO_CONSTANT", Error, "Condition in 'if' or 'switch' statement evaluates to constant"},
	UnreachableStatement:                {"UNREACHABLE_STATEMENT", Error, "Unreachable statement"},
	DivisionByZero:                      {"DIVISION_BY_ZERO", Error, "Division by zero"},
	NullPointerException:                {"NULL_POINTER_EXCEPTION", Error, "Null pointer exception"},
	PotentialNullPointerException:       {"POTENTIAL_NULL_POINTER_EXCEPTION", Warn, "Potential null pointer exception"},
	AssignmentToSelf:                    {"ASSIGNMENT_TO_SELF", Error, "Assigning a variable to itself"},
	ParameterShouldNotBeAssignedTo:      {"PARAMETER_SHOULD_NOT_BE_ASSIGNED_TO", Error, "Parameter should not be assigned to"},
	AssertEvaluatesToConstantTrue:       {"ASSERT_EVALUATES_TO_CONSTANT_TRUE", Error, "Assert statement evaluates to constant true"},
	LoopWithoutModification:             {"LOOP_WITHOUT_MODIFICATION", Error, "Loop condition is not modified in the loop body"},
	EmptyLoop:                           {"EMPTY_LOOP", Error, "Empty loop"},
	CallingModifyingMethodOnE2Immutable: {"CALLING_MODIFYING_METHOD_ON_E2IMMU", Error, "Calling a modifying method on an @E2Immutable object"},
	EventualBeforeRequired:              {"EVENTUAL_BEFORE_REQUIRED", Error, "Method may only be called before the mark"},
	EventualAfterRequired:               {"EVENTUAL_AFTER_REQUIRED", Error, "Method may only be called after the mark"},
	ModificationNotAllowed:              {"MODIFICATION_NOT_ALLOWED", Error, "Modification not allowed"},
	IgnoringResultOfMethodCall:          {"IGNORING_RESULT_OF_METHOD_CALL", Warn, "Ignoring result of method call"},
	UselessAssignment:                   {"USELESS_ASSIGNMENT", Error, "Useless assignment"},
	UnusedLocalVariable:                 {"UNUSED_LOCAL_VARIABLE", Error, "Unused local variable"},
	UnusedParameter:                     {"UNUSED_PARAMETER", Warn, "Unused parameter"},
	MethodShouldBeMarkedStatic:          {"METHOD_SHOULD_BE_MARKED_STATIC", Error, "Method should be marked static"},
	NonPrivateFieldNotFinal:             {"NON_PRIVATE_FIELD_NOT_FINAL", Error, "Non-private field is not effectively final"},
	PrivateFieldNotRead:                 {"PRIVATE_FIELD_NOT_READ", Error, "Private field is not read"},
	CircularTypeDependency:              {"CIRCULAR_TYPE_DEPENDENCY", Warn, "Circular type dependency"},
}

// Kinds returns the whole catalogue.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind returns the kind with the catalogue name, e.g. "DIVISION_BY_ZERO".
func ParseKind(name string) (Kind, bool) {
	for k, info := range _kinds {
		if info.name == name {
			return Kind(k), true
		}
	}
	return 0, false
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return _kinds[k].name
}

// Severity returns the severity of the kind.
func (k Kind) Severity() Severity { return _kinds[k].severity }

// Message returns the message text of the kind.
func (k Kind) Message() string { return _kinds[k].message }
