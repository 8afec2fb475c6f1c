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

// Table holds one DV slot per property for a single analysed element (a method, a field, a
// parameter or a type). Slots are created lazily on first use.
type Table struct {
	arena *Arena
	owner string
	slots [numProperties]*Slot[DV]
}

// NewTable creates a table whose slots live in the arena. owner prefixes the slot names.
func NewTable(a *Arena, owner string) *Table {
	return &Table{arena: a, owner: owner}
}

func (t *Table) slot(p Property) *Slot[DV] {
	if t.slots[p] == nil {
		t.slots[p] = NewSlot(t.arena, t.owner+":"+p.String(), Equal[DV]).WithFormat(p.Format)
	}
	return t.slots[p]
}

// Get returns the level of the property, or Delay when it is not set.
func (t *Table) Get(p Property) DV {
	if s := t.slots[p]; s != nil {
		if v, ok := s.Get(); ok {
			return v
		}
	}
	return Delay
}

// GetOrDefault returns the level of the property, or def when it is not set.
func (t *Table) GetOrDefault(p Property, def DV) DV {
	if v := t.Get(p); v != Delay {
		return v
	}
	return def
}

// IsSet reports whether the property holds a concrete level.
func (t *Table) IsSet(p Property) bool {
	s := t.slots[p]
	return s != nil && s.IsSet()
}

// Put stores v, or records a delay with the cause when v is Delay. Delaying a property that is
// already set is a regression. It returns true when the slot holds a concrete value afterwards.
func (t *Table) Put(p Property, v DV, cause string) bool {
	s := t.slot(p)
	if v == Delay {
		s.Delay(cause)
		return false
	}
	s.Set(v)
	return true
}

// Set stores a concrete level.
func (t *Table) Set(p Property, v DV) {
	if v == Delay {
		panic("use Put to record a delay on " + t.owner + ":" + p.String())
	}
	t.slot(p).Set(v)
}

// Snapshot returns the concrete levels of the table.
func (t *Table) Snapshot() map[Property]DV {
	out := make(map[Property]DV)
	for p, s := range t.slots {
		if s == nil {
			continue
		}
		if v, ok := s.Get(); ok {
			out[Property(p)] = v
		}
	}
	return out
}

// Range calls f for every concrete level, in property order.
func (t *Table) Range(f func(p Property, v DV) bool) {
	for p, s := range t.slots {
		if s == nil {
			continue
		}
		if v, ok := s.Get(); ok {
			if !f(Property(p), v) {
				return
			}
		}
	}
}
