// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"errors"
	"math"
)

var (
	// ErrMalformed is returned by stream readers for input which is no valid CBOR.
	ErrMalformed = errors.New("cbor: malformed input")

	// ErrBufferTooSmall is returned if an encoding does not fit the given buffer.
	ErrBufferTooSmall = errors.New("cbor: buffer too small")

	// ErrNilValue is returned when encoding a nil Value.
	ErrNilValue = errors.New("cbor: nil value")

	// ErrInvalidSimple is returned when encoding a reserved simple value.
	ErrInvalidSimple = errors.New("cbor: invalid simple value")

	// ErrIndexOutOfRange is returned by Array operations for invalid indices.
	ErrIndexOutOfRange = errors.New("cbor: index out of range")
)

// Match is the result of a decoding attempt.
type Match int

const (
	// NoMatch means the input is malformed or exceeds a limit. Retrying with
	// more data will not help.
	NoMatch Match = iota

	// Partial means the input is a valid but incomplete prefix of an item.
	// The caller should retry with more data from the same start.
	Partial

	// Full means one complete item was decoded.
	Full
)

func (m Match) String() string {
	switch m {
	case NoMatch:
		return "no match"
	case Partial:
		return "partial"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// DefaultMaxDepth is the default nesting limit for arrays, maps and tags.
const DefaultMaxDepth = 512

// Limits bound the resources a Decoder may allocate for untrusted input.
// Exceeding any limit results in NoMatch. A zero field takes its default.
type Limits struct {
	// StringSize is the maximum length of a byte string in bytes.
	StringSize uint64
	// UTF8Size is the maximum length of a text string in bytes.
	UTF8Size uint64

	// ArraySize is the maximum number of items of a definite-length array.
	ArraySize uint64
	// IndefiniteArraySize is the maximum number of items of an indefinite-length array.
	IndefiniteArraySize uint64

	// MapSize is the maximum number of pairs of a definite-length map.
	MapSize uint64
	// IndefiniteMapSize is the maximum number of pairs of an indefinite-length map.
	IndefiniteMapSize uint64

	// MaxDepth is the maximum nesting level.
	MaxDepth int
}

// DefaultLimits returns the most permissive Limits.
func DefaultLimits() Limits {
	return Limits{
		StringSize:          math.MaxUint32,
		UTF8Size:            math.MaxUint32,
		ArraySize:           math.MaxUint32,
		IndefiniteArraySize: math.MaxUint32,
		MapSize:             math.MaxUint32,
		IndefiniteMapSize:   math.MaxUint32,
		MaxDepth:            DefaultMaxDepth,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	for _, f := range []struct{ field, fallback *uint64 }{
		{&l.StringSize, &def.StringSize},
		{&l.UTF8Size, &def.UTF8Size},
		{&l.ArraySize, &def.ArraySize},
		{&l.IndefiniteArraySize, &def.IndefiniteArraySize},
		{&l.MapSize, &def.MapSize},
		{&l.IndefiniteMapSize, &def.IndefiniteMapSize},
	} {
		if *f.field == 0 {
			*f.field = *f.fallback
		}
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = def.MaxDepth
	}
	return l
}

// Decoder decodes CBOR items under a fixed set of Limits. A Decoder is
// immutable and safe for concurrent use.
type Decoder struct {
	limits Limits
}

// NewDecoder creates a Decoder for the given Limits.
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults()}
}

// Limits returns the effective Limits of this Decoder.
func (d *Decoder) Limits() Limits {
	return d.limits
}

var defaultDecoder = NewDecoder(DefaultLimits())

// Decode the first item of buf with DefaultLimits.
func Decode(buf []byte) (Match, Value, int) {
	return defaultDecoder.Decode(buf)
}
