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

package analysis

import (
	"go.uber.org/immutaway/property"
)

// Event is one step of an analyser, recorded in the history of an engine run when history is
// enabled. Events hold snapshots and are not modified after they are recorded.
type Event interface {
	// Step returns the iteration in which the event happened.
	Step() int
}

// StatementEvent records the outcome of one statement in one pass.
type StatementEvent struct {
	Iteration int
	Method    string
	Index     string
	Reachable bool
	// State and Value are renderings, empty when absent.
	State string
	Value string
}

// MethodEvent records the properties of a method after it was graded.
type MethodEvent struct {
	Iteration int
	Method    string
	Status    Status
	Props     map[property.Property]property.DV
	Delays    []string
}

// FieldEvent records the properties of a field after it was graded.
type FieldEvent struct {
	Iteration int
	Field     string
	Props     map[property.Property]property.DV
}

// TypeEvent records the properties of a type after it was graded.
type TypeEvent struct {
	Iteration int
	Type      string
	Props     map[property.Property]property.DV
	// Approved is the rendering of the approved preconditions, empty while unknown.
	Approved string
}

func (e StatementEvent) Step() int { return e.Iteration }
func (e MethodEvent) Step() int    { return e.Iteration }
func (e FieldEvent) Step() int     { return e.Iteration }
func (e TypeEvent) Step() int      { return e.Iteration }
