// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import "github.com/cespare/xxhash"

type mapEntry struct {
	key   Value
	value Value
}

// Map is a mapping of Value keys to Values, major type 5. Keys are compared
// structurally by Equal, so containers are valid keys as well. Insertion order
// is kept for encoding.
//
// Lookups are accelerated by an index over each key's canonical encoding.
// Keys without a valid encoding or containing a Map, whose pairs may be
// ordered differently in equal keys, fall back to a linear scan.
type Map struct {
	entries []mapEntry
	index   map[uint64][]int
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[uint64][]int)}
}

func containsMap(v Value) bool {
	switch v := v.(type) {
	case *Map:
		return true
	case *Array:
		for _, item := range v.items {
			if containsMap(item) {
				return true
			}
		}
	case Tag:
		return containsMap(v.Content)
	case DecimalFraction:
		return containsMap(v[0]) || containsMap(v[1])
	case Bigfloat:
		return containsMap(v[0]) || containsMap(v[1])
	}
	return false
}

func keyHash(k Value) (uint64, bool) {
	if k == nil || containsMap(k) {
		return 0, false
	}
	data, err := Marshal(k)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(data), true
}

func (m *Map) find(k Value) int {
	if h, ok := keyHash(k); ok {
		for _, i := range m.index[h] {
			if Equal(m.entries[i].key, k) {
				return i
			}
		}
		return -1
	}

	for i, e := range m.entries {
		if Equal(e.key, k) {
			return i
		}
	}
	return -1
}

func (m *Map) reindex() {
	m.index = make(map[uint64][]int, len(m.entries))
	for i, e := range m.entries {
		if h, ok := keyHash(e.key); ok {
			m.index[h] = append(m.index[h], i)
		}
	}
}

// Len returns the number of key/value pairs.
func (m *Map) Len() int {
	return len(m.entries)
}

// Get the value for key k.
func (m *Map) Get(k Value) (Value, bool) {
	if i := m.find(k); i >= 0 {
		return m.entries[i].value, true
	}
	return nil, false
}

// GetString is Get for a Text key.
func (m *Map) GetString(k string) (Value, bool) {
	return m.Get(Text(k))
}

// Has checks if key k is present.
func (m *Map) Has(k Value) bool {
	return m.find(k) >= 0
}

// Set the value for key k, replacing an existing value in place.
func (m *Map) Set(k, v Value) {
	if i := m.find(k); i >= 0 {
		m.entries[i].value = v
		return
	}

	if m.index == nil {
		m.index = make(map[uint64][]int)
	}
	if h, ok := keyHash(k); ok {
		m.index[h] = append(m.index[h], len(m.entries))
	}
	m.entries = append(m.entries, mapEntry{key: k, value: v})
}

// SetString is Set for a Text key.
func (m *Map) SetString(k string, v Value) {
	m.Set(Text(k), v)
}

// Delete key k and its value. It reports whether k was present.
func (m *Map) Delete(k Value) bool {
	i := m.find(k)
	if i < 0 {
		return false
	}

	copy(m.entries[i:], m.entries[i+1:])
	m.entries[len(m.entries)-1] = mapEntry{}
	m.entries = m.entries[:len(m.entries)-1]
	m.reindex()
	return true
}

// ForEach calls f for each pair in insertion order until f returns false. The
// Map must not be modified from within f.
func (m *Map) ForEach(f func(k, v Value) bool) {
	for _, e := range m.entries {
		if !f(e.key, e.value) {
			return
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value {
	ks := make([]Value, len(m.entries))
	for i, e := range m.entries {
		ks[i] = e.key
	}
	return ks
}
