// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"bytes"
	"math"

	"github.com/cespare/xxhash"
)

type integer struct {
	negative  bool
	magnitude uint64
}

func asInteger(v Value) (integer, bool) {
	switch v := v.(type) {
	case UInt:
		return integer{false, uint64(v)}, true
	case Int:
		if v < 0 {
			return integer{true, uint64(-(v + 1))}, true
		}
		return integer{false, uint64(v)}, true
	default:
		return integer{}, false
	}
}

// Equal compares two Values structurally. Integers are compared by their
// numeric value regardless of being UInt or Int, floats by their bits. Maps
// are equal if they hold equal pairs, independent of their order. A generic
// Tag equals the dedicated Value the decoder would produce for it.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if t, ok := a.(Tag); ok {
		a = newTagged(t.Number, t.Content)
	}
	if t, ok := b.(Tag); ok {
		b = newTagged(t.Number, t.Content)
	}

	if ai, ok := asInteger(a); ok {
		bi, ok := asInteger(b)
		return ok && ai == bi
	}

	switch a := a.(type) {
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Bytes:
		bb, ok := b.(Bytes)
		return ok && bytes.Equal(a, bb)
	case Text:
		bb, ok := b.(Text)
		return ok && a == bb
	case DateTime:
		bb, ok := b.(DateTime)
		return ok && a == bb
	case EpochTime:
		bb, ok := b.(EpochTime)
		return ok && a == bb
	case UBignum:
		bb, ok := b.(UBignum)
		return ok && bytes.Equal(a, bb)
	case IBignum:
		bb, ok := b.(IBignum)
		return ok && bytes.Equal(a, bb)
	case DecimalFraction:
		bb, ok := b.(DecimalFraction)
		return ok && Equal(a[0], bb[0]) && Equal(a[1], bb[1])
	case Bigfloat:
		bb, ok := b.(Bigfloat)
		return ok && Equal(a[0], bb[0]) && Equal(a[1], bb[1])
	case Tag:
		bb, ok := b.(Tag)
		return ok && a.Number == bb.Number && Equal(a.Content, bb.Content)
	case Simple:
		bb, ok := b.(Simple)
		return ok && a == bb
	case Float32:
		bb, ok := b.(Float32)
		return ok && math.Float32bits(float32(a)) == math.Float32bits(float32(bb))
	case Float64:
		bb, ok := b.(Float64)
		return ok && math.Float64bits(float64(a)) == math.Float64bits(float64(bb))
	case *Array:
		bb, ok := b.(*Array)
		if !ok || len(a.items) != len(bb.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], bb.items[i]) {
				return false
			}
		}
		return true
	case *Map:
		bb, ok := b.(*Map)
		if !ok || len(a.entries) != len(bb.entries) {
			return false
		}
		for _, e := range a.entries {
			if v, ok := bb.Get(e.key); !ok || !Equal(e.value, v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Copy returns a deep copy of v.
func Copy(v Value) Value {
	switch v := v.(type) {
	case Bytes:
		return Bytes(copyBytes(v))
	case UBignum:
		return UBignum(copyBytes(v))
	case IBignum:
		return IBignum(copyBytes(v))
	case DecimalFraction:
		return DecimalFraction{Copy(v[0]), Copy(v[1])}
	case Bigfloat:
		return Bigfloat{Copy(v[0]), Copy(v[1])}
	case Tag:
		return Tag{Number: v.Number, Content: Copy(v.Content)}
	case *Array:
		a := &Array{items: make([]Value, len(v.items))}
		for i, item := range v.items {
			a.items[i] = Copy(item)
		}
		return a
	case *Map:
		m := &Map{entries: make([]mapEntry, len(v.entries))}
		for i, e := range v.entries {
			m.entries[i] = mapEntry{key: Copy(e.key), value: Copy(e.value)}
		}
		m.reindex()
		return m
	default:
		return v
	}
}

// Hash returns a hash of v's canonical encoding.
func Hash(v Value) (uint64, error) {
	data, err := Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
