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

// Package orderedmap implements a generic map that remembers the insertion order of its keys.
// Analysis tables use it so that every rendering of variables, properties and annotations is
// deterministic.
package orderedmap

import (
	"bytes"
	"encoding/gob"
	"io"
	"slices"
)

// OrderedMap is a map whose iteration order is the order in which keys were first stored.
type OrderedMap[K comparable, V any] struct {
	inner map[K]V
	keys  []K
}

// New returns an empty map.
func New[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored under key.
func (m *OrderedMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Value returns the value stored under key, or the zero value.
func (m *OrderedMap[K, V]) Value(key K) V {
	return m.inner[key]
}

// Store sets the value of key. A new key goes to the end of the order; an existing key keeps
// its place.
func (m *OrderedMap[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = value
}

// Delete removes key.
func (m *OrderedMap[K, V]) Delete(key K) {
	if _, ok := m.inner[key]; !ok {
		return
	}
	delete(m.inner, key)
	m.keys = slices.DeleteFunc(m.keys, func(k K) bool { return k == key })
}

// Len returns the number of keys.
func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

// Keys returns the keys in order.
func (m *OrderedMap[K, V]) Keys() []K { return slices.Clone(m.keys) }

// Copy returns a shallow copy that can be modified independently.
func (m *OrderedMap[K, V]) Copy() *OrderedMap[K, V] {
	c := &OrderedMap[K, V]{inner: make(map[K]V, len(m.inner)), keys: slices.Clone(m.keys)}
	for k, v := range m.inner {
		c.inner[k] = v
	}
	return c
}

// OrderedRange calls f for every entry in order until f returns false.
func (m *OrderedMap[K, V]) OrderedRange(f func(key K, value V) bool) {
	for _, k := range m.keys {
		if !f(k, m.inner[k]) {
			return
		}
	}
}

// GobEncode writes the entries in order, keys and values alternating.
func (m *OrderedMap[K, V]) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, k := range m.keys {
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		if err := enc.Encode(m.inner[k]); err != nil {
			return nil, err
		}
	}

	if buf.Len() == 0 {
		return nil, nil
	}
	return buf.Bytes(), nil
}

// GobDecode reads entries written by GobEncode, appending them in order.
func (m *OrderedMap[K, V]) GobDecode(b []byte) error {
	if m.inner == nil {
		m.inner = make(map[K]V)
	}
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	for {
		var k K
		if err := dec.Decode(&k); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return err
		}
		m.Store(k, v)
	}

	return nil
}
