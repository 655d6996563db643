// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import "fmt"

// Array is an ordered sequence of Values, major type 4. An Array owns its
// elements: a Value passed to one of the mutating methods must not be shared
// with another container afterwards.
type Array struct {
	items []Value
}

// NewArray creates an Array of the given items. The Array takes over the
// items, but not the variadic slice itself.
func NewArray(items ...Value) *Array {
	a := &Array{items: make([]Value, len(items))}
	copy(a.items, items)
	return a
}

func (a *Array) checkIndex(i, max int) error {
	if i < 0 || i >= max {
		return fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, len(a.items))
	}
	return nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.items)
}

// Get the element at index i or nil if i is out of range.
func (a *Array) Get(i int) Value {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Set replaces the element at index i.
func (a *Array) Set(i int, v Value) error {
	if err := a.checkIndex(i, len(a.items)); err != nil {
		return err
	}
	a.items[i] = v
	return nil
}

// Push appends v.
func (a *Array) Push(v Value) {
	a.items = append(a.items, v)
}

// Insert v at index i, shifting the following elements. An index equal to Len
// appends.
func (a *Array) Insert(i int, v Value) error {
	if err := a.checkIndex(i, len(a.items)+1); err != nil {
		return err
	}
	a.items = append(a.items, nil)
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = v
	return nil
}

// Remove the element at index i and return it.
func (a *Array) Remove(i int) (Value, error) {
	if err := a.checkIndex(i, len(a.items)); err != nil {
		return nil, err
	}
	v := a.items[i]
	copy(a.items[i:], a.items[i+1:])
	a.items[len(a.items)-1] = nil
	a.items = a.items[:len(a.items)-1]
	return v, nil
}

// PopFront removes and returns the first element.
func (a *Array) PopFront() (Value, bool) {
	if len(a.items) == 0 {
		return nil, false
	}
	v, _ := a.Remove(0)
	return v, true
}

// PopBack removes and returns the last element.
func (a *Array) PopBack() (Value, bool) {
	if len(a.items) == 0 {
		return nil, false
	}
	v, _ := a.Remove(len(a.items) - 1)
	return v, true
}

// ForEach calls f for each element in order until f returns false. The Array
// must not be modified from within f.
func (a *Array) ForEach(f func(i int, v Value) bool) {
	for i, v := range a.items {
		if !f(i, v) {
			return
		}
	}
}

// Values returns a shallow copy of the elements.
func (a *Array) Values() []Value {
	vs := make([]Value, len(a.items))
	copy(vs, a.items)
	return vs
}
