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
	"fmt"
	"slices"
)

type slotState uint8

const (
	unset slotState = iota
	delayed
	resolved
)

// RegressionError is raised (as a panic value) when a published slot is asked to move away from
// its concrete value, either to another value or back to Delay. It always signals a defect in the
// analyser, never a problem in the analysed code.
type RegressionError struct {
	Slot string
	From string
	To   string
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("property regression on %s: %s -> %s", e.Slot, e.From, e.To)
}

type trackedSlot interface {
	describe() string
	isDelayed() bool
}

// Arena owns a set of slots. It counts the first-time resolutions of its slots, which is the
// progress measure of the fixed-point driver, and can enumerate the slots that are still delayed.
// An Arena is not safe for concurrent use; every cluster of the analysis owns its own.
type Arena struct {
	resolved int
	slots    []trackedSlot
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Resolved returns the number of slots that moved to a concrete value so far.
func (a *Arena) Resolved() int { return a.resolved }

// Len returns the number of slots in the arena.
func (a *Arena) Len() int { return len(a.slots) }

// Delayed describes, in sorted order, every slot whose last update was a Delay.
func (a *Arena) Delayed() []string {
	var out []string
	for _, s := range a.slots {
		if s.isDelayed() {
			out = append(out, s.describe())
		}
	}
	slices.Sort(out)
	return out
}

// Slot is a single-assignment cell with the states Unset, Delayed(cause) and Value(v). The only
// allowed transition to Value is from Unset or Delayed.
type Slot[T any] struct {
	arena *Arena
	name  string
	state slotState
	cause string
	value T
	equal func(a, b T) bool
	show  func(T) string
}

// NewSlot creates a slot owned by the arena. equal decides whether a repeated Set is a no-op or a
// regression.
func NewSlot[T any](a *Arena, name string, equal func(a, b T) bool) *Slot[T] {
	s := &Slot[T]{arena: a, name: name, equal: equal}
	a.slots = append(a.slots, s)
	return s
}

// Equal is the equality function for comparable slot contents.
func Equal[T comparable](a, b T) bool { return a == b }

// WithFormat sets the renderer used in regression messages and String.
func (s *Slot[T]) WithFormat(show func(T) string) *Slot[T] {
	s.show = show
	return s
}

// Set stores the concrete value. Setting the value a slot already holds is a no-op.
func (s *Slot[T]) Set(v T) {
	if s.state == resolved {
		if !s.equal(s.value, v) {
			panic(&RegressionError{Slot: s.name, From: s.format(s.value), To: s.format(v)})
		}
		return
	}
	s.state = resolved
	s.value = v
	s.cause = ""
	s.arena.resolved++
}

// Delay records that the value cannot be computed yet, with a short cause for diagnostics.
func (s *Slot[T]) Delay(cause string) {
	if s.state == resolved {
		panic(&RegressionError{Slot: s.name, From: s.format(s.value), To: "<delayed: " + cause + ">"})
	}
	s.state = delayed
	s.cause = cause
}

// Get returns the value and whether it is set.
func (s *Slot[T]) Get() (T, bool) {
	return s.value, s.state == resolved
}

// MustGet returns the value of a slot that is known to be set.
func (s *Slot[T]) MustGet() T {
	if s.state != resolved {
		panic(fmt.Sprintf("slot %s is not set", s.name))
	}
	return s.value
}

// IsSet reports whether the slot holds a concrete value.
func (s *Slot[T]) IsSet() bool { return s.state == resolved }

// Cause returns the cause of the last delay, if the slot is delayed.
func (s *Slot[T]) Cause() string { return s.cause }

// Name returns the name the slot was created with.
func (s *Slot[T]) Name() string { return s.name }

func (s *Slot[T]) String() string {
	switch s.state {
	case resolved:
		return s.format(s.value)
	case delayed:
		return "<delayed: " + s.cause + ">"
	default:
		return "<unset>"
	}
}

func (s *Slot[T]) format(v T) string {
	if s.show != nil {
		return s.show(v)
	}
	return fmt.Sprint(v)
}

func (s *Slot[T]) describe() string { return s.name + " (" + s.cause + ")" }

func (s *Slot[T]) isDelayed() bool { return s.state == delayed }
