// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"math"
	"unicode/utf8"

	"github.com/x448/float16"
)

const (
	majorUInt   byte = 0
	majorNegInt byte = 1
	majorBytes  byte = 2
	majorText   byte = 3
	majorArray  byte = 4
	majorMap    byte = 5
	majorTag    byte = 6
	majorSimple byte = 7

	infoIndefinite byte = 31

	// IndefiniteArray is the header byte of an indefinite-length array.
	IndefiniteArray byte = 0x9F
	// BreakCode terminates an indefinite-length item.
	BreakCode byte = 0xFF
)

const (
	tagDateTime        uint64 = 0
	tagEpochTime       uint64 = 1
	tagUBignum         uint64 = 2
	tagIBignum         uint64 = 3
	tagDecimalFraction uint64 = 4
	tagBigfloat        uint64 = 5
)

// head is an item's initial byte together with its argument.
type head struct {
	major      byte
	info       byte
	arg        uint64
	indefinite bool
}

type decodeState struct {
	buf    []byte
	limits *Limits
}

// Decode the first item of buf. On Full, the returned int is the number of
// consumed bytes.
func (d *Decoder) Decode(buf []byte) (Match, Value, int) {
	ds := decodeState{buf: buf, limits: &d.limits}
	m, v, n := ds.item(0, 0)
	if m != Full {
		return m, nil, 0
	}
	return Full, v, n
}

func (d *decodeState) readHead(pos int) (head, int, Match) {
	if pos >= len(d.buf) {
		return head{}, pos, Partial
	}

	ib := d.buf[pos]
	h := head{major: ib >> 5, info: ib & 0x1f}
	pos++

	switch {
	case h.info < 24:
		h.arg = uint64(h.info)

	case h.info <= 27:
		n := 1 << (h.info - 24)
		if len(d.buf)-pos < n {
			return h, pos, Partial
		}
		for _, b := range d.buf[pos : pos+n] {
			h.arg = h.arg<<8 | uint64(b)
		}
		pos += n

	case h.info == infoIndefinite:
		h.indefinite = true

	default:
		return h, pos, NoMatch
	}

	return h, pos, Full
}

func (d *decodeState) item(pos, depth int) (Match, Value, int) {
	if depth > d.limits.MaxDepth {
		return NoMatch, nil, pos
	}

	h, next, m := d.readHead(pos)
	if m != Full {
		return m, nil, pos
	}

	switch h.major {
	case majorUInt:
		if h.indefinite {
			return NoMatch, nil, pos
		}
		return Full, UInt(h.arg), next

	case majorNegInt:
		if h.indefinite || h.arg > math.MaxInt64 {
			return NoMatch, nil, pos
		}
		return Full, Int(-1 - int64(h.arg)), next

	case majorBytes:
		data, m, next := d.str(h, next, d.limits.StringSize)
		if m != Full {
			return m, nil, pos
		}
		return Full, Bytes(data), next

	case majorText:
		data, m, next := d.str(h, next, d.limits.UTF8Size)
		if m != Full {
			return m, nil, pos
		}
		return Full, Text(data), next

	case majorArray:
		return d.array(h, next, depth)

	case majorMap:
		return d.mapping(h, next, depth)

	case majorTag:
		if h.indefinite {
			return NoMatch, nil, pos
		}
		m, content, next := d.item(next, depth+1)
		if m != Full {
			return m, nil, pos
		}
		return Full, newTagged(h.arg, content), next

	default:
		v, ok := simpleValue(h)
		if !ok {
			return NoMatch, nil, pos
		}
		return Full, v, next
	}
}

// str reads a byte or text string, definite or chunked, starting after its head.
func (d *decodeState) str(h head, pos int, limit uint64) ([]byte, Match, int) {
	valid := func(data []byte) bool {
		return h.major != majorText || utf8.Valid(data)
	}

	if !h.indefinite {
		if h.arg > limit {
			return nil, NoMatch, pos
		}
		if h.arg > uint64(len(d.buf)-pos) {
			return nil, Partial, pos
		}

		end := pos + int(h.arg)
		if !valid(d.buf[pos:end]) {
			return nil, NoMatch, pos
		}

		data := make([]byte, h.arg)
		copy(data, d.buf[pos:end])
		return data, Full, end
	}

	data := []byte{}
	for {
		if pos >= len(d.buf) {
			return nil, Partial, pos
		}
		if d.buf[pos] == BreakCode {
			return data, Full, pos + 1
		}

		ch, next, m := d.readHead(pos)
		if m != Full {
			return nil, m, pos
		}
		if ch.major != h.major || ch.indefinite {
			return nil, NoMatch, pos
		}
		if ch.arg > limit-uint64(len(data)) {
			return nil, NoMatch, pos
		}
		if ch.arg > uint64(len(d.buf)-next) {
			return nil, Partial, pos
		}

		end := next + int(ch.arg)
		if !valid(d.buf[next:end]) {
			return nil, NoMatch, pos
		}
		data = append(data, d.buf[next:end]...)
		pos = end
	}
}

// capacity bounds a declared item count by the remaining input, as each item
// takes at least one byte.
func (d *decodeState) capacity(count uint64, pos int) int {
	if rest := uint64(len(d.buf) - pos); count > rest {
		return int(rest)
	}
	return int(count)
}

func (d *decodeState) array(h head, pos, depth int) (Match, Value, int) {
	start := pos
	a := &Array{}

	if h.indefinite {
		for {
			if pos >= len(d.buf) {
				return Partial, nil, start
			}
			if d.buf[pos] == BreakCode {
				return Full, a, pos + 1
			}
			if uint64(len(a.items)) >= d.limits.IndefiniteArraySize {
				return NoMatch, nil, start
			}

			m, v, next := d.item(pos, depth+1)
			if m != Full {
				return m, nil, start
			}
			a.items = append(a.items, v)
			pos = next
		}
	}

	if h.arg > d.limits.ArraySize {
		return NoMatch, nil, start
	}

	a.items = make([]Value, 0, d.capacity(h.arg, pos))
	for i := uint64(0); i < h.arg; i++ {
		m, v, next := d.item(pos, depth+1)
		if m != Full {
			return m, nil, start
		}
		a.items = append(a.items, v)
		pos = next
	}
	return Full, a, pos
}

func (d *decodeState) pair(m *Map, pos, depth int) (Match, int) {
	mk, k, next := d.item(pos, depth+1)
	if mk != Full {
		return mk, pos
	}
	mv, v, next := d.item(next, depth+1)
	if mv != Full {
		return mv, pos
	}

	if m.Has(k) {
		return NoMatch, pos
	}
	m.Set(k, v)
	return Full, next
}

func (d *decodeState) mapping(h head, pos, depth int) (Match, Value, int) {
	start := pos
	m := NewMap()

	if h.indefinite {
		for {
			if pos >= len(d.buf) {
				return Partial, nil, start
			}
			if d.buf[pos] == BreakCode {
				return Full, m, pos + 1
			}
			if uint64(len(m.entries)) >= d.limits.IndefiniteMapSize {
				return NoMatch, nil, start
			}

			mp, next := d.pair(m, pos, depth)
			if mp != Full {
				return mp, nil, start
			}
			pos = next
		}
	}

	if h.arg > d.limits.MapSize {
		return NoMatch, nil, start
	}

	m.entries = make([]mapEntry, 0, d.capacity(h.arg, pos)/2)
	for i := uint64(0); i < h.arg; i++ {
		mp, next := d.pair(m, pos, depth)
		if mp != Full {
			return mp, nil, start
		}
		pos = next
	}
	return Full, m, pos
}

// simpleValue converts a major type 7 head into its Value.
func simpleValue(h head) (Value, bool) {
	if h.indefinite {
		// A break code outside of an indefinite-length item.
		return nil, false
	}

	switch h.info {
	case 20:
		return Bool(false), true
	case 21:
		return Bool(true), true
	case 22:
		return Null{}, true
	case 23:
		return Undefined{}, true
	case 24:
		if h.arg < 32 {
			return nil, false
		}
		return Simple(h.arg), true
	case 25:
		return Float32(float16.Frombits(uint16(h.arg)).Float32()), true
	case 26:
		return Float32(math.Float32frombits(uint32(h.arg))), true
	case 27:
		return Float64(math.Float64frombits(h.arg)), true
	default:
		return Simple(h.info), true
	}
}

// newTagged creates the dedicated Value for well-known tags, falling back to
// a generic Tag if the content does not fit.
func newTagged(number uint64, content Value) Value {
	switch number {
	case tagDateTime:
		if t, ok := content.(Text); ok {
			return DateTime(t)
		}
	case tagEpochTime:
		if u, ok := content.(UInt); ok {
			return EpochTime(u)
		}
	case tagUBignum:
		if b, ok := content.(Bytes); ok {
			return UBignum(b)
		}
	case tagIBignum:
		if b, ok := content.(Bytes); ok {
			return IBignum(b)
		}
	case tagDecimalFraction:
		if a, ok := content.(*Array); ok && a.Len() == 2 {
			return DecimalFraction{a.items[0], a.items[1]}
		}
	case tagBigfloat:
		if a, ok := content.(*Array); ok && a.Len() == 2 {
			return Bigfloat{a.items[0], a.items[1]}
		}
	}
	return Tag{Number: number, Content: content}
}
