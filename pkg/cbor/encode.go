// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// headSize is the length of a head with the shortest form for arg.
func headSize(arg uint64) int {
	switch {
	case arg < 24:
		return 1
	case arg <= math.MaxUint8:
		return 2
	case arg <= math.MaxUint16:
		return 3
	case arg <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// appendHead writes the shortest head for major and arg.
func appendHead(dst []byte, major byte, arg uint64) []byte {
	mt := major << 5

	switch {
	case arg < 24:
		return append(dst, mt|byte(arg))
	case arg <= math.MaxUint8:
		return append(dst, mt|24, byte(arg))
	case arg <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(dst, mt|25), uint16(arg))
	case arg <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(dst, mt|26), uint32(arg))
	default:
		return binary.BigEndian.AppendUint64(append(dst, mt|27), arg)
	}
}

func checkSimple(s Simple) error {
	if s >= 20 && s < 32 {
		return fmt.Errorf("%w: %d", ErrInvalidSimple, s)
	}
	return nil
}

// intHead returns the major type and argument of an integer.
func intHead(i Int) (byte, uint64) {
	if i < 0 {
		return majorNegInt, uint64(-(i + 1))
	}
	return majorUInt, uint64(i)
}

func pairSize(a, b Value) (int, error) {
	sa, err := EncodingSize(a)
	if err != nil {
		return 0, err
	}
	sb, err := EncodingSize(b)
	if err != nil {
		return 0, err
	}
	return sa + sb, nil
}

// EncodingSize returns the exact length of v's canonical encoding.
func EncodingSize(v Value) (int, error) {
	switch v := v.(type) {
	case nil:
		return 0, ErrNilValue
	case Undefined, Null, Bool:
		return 1, nil
	case UInt:
		return headSize(uint64(v)), nil
	case Int:
		_, arg := intHead(v)
		return headSize(arg), nil
	case Bytes:
		return headSize(uint64(len(v))) + len(v), nil
	case Text:
		return headSize(uint64(len(v))) + len(v), nil
	case *Array:
		size := headSize(uint64(len(v.items)))
		for _, item := range v.items {
			s, err := EncodingSize(item)
			if err != nil {
				return 0, err
			}
			size += s
		}
		return size, nil
	case *Map:
		size := headSize(uint64(len(v.entries)))
		for _, e := range v.entries {
			s, err := pairSize(e.key, e.value)
			if err != nil {
				return 0, err
			}
			size += s
		}
		return size, nil
	case DateTime:
		return 1 + headSize(uint64(len(v))) + len(v), nil
	case EpochTime:
		return 1 + headSize(uint64(v)), nil
	case UBignum:
		return 1 + headSize(uint64(len(v))) + len(v), nil
	case IBignum:
		return 1 + headSize(uint64(len(v))) + len(v), nil
	case DecimalFraction:
		s, err := pairSize(v[0], v[1])
		return 2 + s, err
	case Bigfloat:
		s, err := pairSize(v[0], v[1])
		return 2 + s, err
	case Tag:
		s, err := EncodingSize(v.Content)
		return headSize(v.Number) + s, err
	case Simple:
		if err := checkSimple(v); err != nil {
			return 0, err
		}
		if v < 24 {
			return 1, nil
		}
		return 2, nil
	case Float32:
		return 5, nil
	case Float64:
		return 9, nil
	default:
		return 0, fmt.Errorf("cbor: unsupported value %T", v)
	}
}

func appendPair(dst []byte, a, b Value) ([]byte, error) {
	dst, err := Append(dst, a)
	if err != nil {
		return nil, err
	}
	return Append(dst, b)
}

// Append the canonical encoding of v to dst.
func Append(dst []byte, v Value) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, ErrNilValue
	case Undefined:
		return append(dst, 0xF7), nil
	case Null:
		return append(dst, 0xF6), nil
	case Bool:
		if v {
			return append(dst, 0xF5), nil
		}
		return append(dst, 0xF4), nil
	case UInt:
		return appendHead(dst, majorUInt, uint64(v)), nil
	case Int:
		major, arg := intHead(v)
		return appendHead(dst, major, arg), nil
	case Bytes:
		return append(appendHead(dst, majorBytes, uint64(len(v))), v...), nil
	case Text:
		return append(appendHead(dst, majorText, uint64(len(v))), v...), nil
	case *Array:
		dst = appendHead(dst, majorArray, uint64(len(v.items)))
		for _, item := range v.items {
			var err error
			if dst, err = Append(dst, item); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case *Map:
		dst = appendHead(dst, majorMap, uint64(len(v.entries)))
		for _, e := range v.entries {
			var err error
			if dst, err = appendPair(dst, e.key, e.value); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case DateTime:
		dst = appendHead(dst, majorTag, tagDateTime)
		return Append(dst, Text(v))
	case EpochTime:
		dst = appendHead(dst, majorTag, tagEpochTime)
		return Append(dst, UInt(v))
	case UBignum:
		dst = appendHead(dst, majorTag, tagUBignum)
		return Append(dst, Bytes(v))
	case IBignum:
		dst = appendHead(dst, majorTag, tagIBignum)
		return Append(dst, Bytes(v))
	case DecimalFraction:
		dst = appendHead(dst, majorTag, tagDecimalFraction)
		return appendPair(appendHead(dst, majorArray, 2), v[0], v[1])
	case Bigfloat:
		dst = appendHead(dst, majorTag, tagBigfloat)
		return appendPair(appendHead(dst, majorArray, 2), v[0], v[1])
	case Tag:
		if v.Content == nil {
			return nil, fmt.Errorf("tag %d: %w", v.Number, ErrNilValue)
		}
		return Append(appendHead(dst, majorTag, v.Number), v.Content)
	case Simple:
		if err := checkSimple(v); err != nil {
			return nil, err
		}
		return appendHead(dst, majorSimple, uint64(v)), nil
	case Float32:
		dst = append(dst, majorSimple<<5|26)
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v))), nil
	case Float64:
		dst = append(dst, majorSimple<<5|27)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(float64(v))), nil
	default:
		return nil, fmt.Errorf("cbor: unsupported value %T", v)
	}
}

// Marshal returns the canonical encoding of v.
func Marshal(v Value) ([]byte, error) {
	size, err := EncodingSize(v)
	if err != nil {
		return nil, err
	}
	return Append(make([]byte, 0, size), v)
}

// Encode v into buf and return the number of written bytes. If buf is too
// small, nothing is written and ErrBufferTooSmall is returned. EncodingSize
// tells the required length.
func Encode(v Value, buf []byte) (int, error) {
	size, err := EncodingSize(v)
	if err != nil {
		return 0, err
	}
	if size > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(buf))
	}

	out, err := Append(buf[:0], v)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// IndefiniteArraySize returns the length of a's encoding as an
// indefinite-length array.
func IndefiniteArraySize(a *Array) (int, error) {
	size, err := EncodingSize(a)
	if err != nil {
		return 0, err
	}
	return size - headSize(uint64(len(a.items))) + 2, nil
}

// AppendIndefiniteArray appends a's items enclosed by an indefinite-length
// array head and a break code.
func AppendIndefiniteArray(dst []byte, a *Array) ([]byte, error) {
	dst = append(dst, IndefiniteArray)
	for _, item := range a.items {
		var err error
		if dst, err = Append(dst, item); err != nil {
			return nil, err
		}
	}
	return append(dst, BreakCode), nil
}

// MarshalIndefiniteArray encodes a as an indefinite-length array.
func MarshalIndefiniteArray(a *Array) ([]byte, error) {
	size, err := IndefiniteArraySize(a)
	if err != nil {
		return nil, err
	}
	return AppendIndefiniteArray(make([]byte, 0, size), a)
}

// EncodeIndefiniteArray is Encode for an indefinite-length array.
func EncodeIndefiniteArray(a *Array, buf []byte) (int, error) {
	size, err := IndefiniteArraySize(a)
	if err != nil {
		return 0, err
	}
	if size > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(buf))
	}

	out, err := AppendIndefiniteArray(buf[:0], a)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}
