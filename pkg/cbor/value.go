// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"fmt"
	"math/big"
)

// Type identifies the variant of a Value.
type Type int

const (
	TypeUndefined Type = iota
	TypeNull
	TypeBool
	TypeUInt
	TypeInt
	TypeBytes
	TypeText
	TypeArray
	TypeMap
	TypeDateTime
	TypeEpochTime
	TypeUBignum
	TypeIBignum
	TypeDecimalFraction
	TypeBigfloat
	TypeTag
	TypeSimple
	TypeFloat32
	TypeFloat64
)

func (t Type) String() string {
	switch t {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeUInt:
		return "uint"
	case TypeInt:
		return "int"
	case TypeBytes:
		return "bytes"
	case TypeText:
		return "text"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	case TypeDateTime:
		return "datetime"
	case TypeEpochTime:
		return "epochtime"
	case TypeUBignum:
		return "ubignum"
	case TypeIBignum:
		return "ibignum"
	case TypeDecimalFraction:
		return "decimalfraction"
	case TypeBigfloat:
		return "bigfloat"
	case TypeTag:
		return "tag"
	case TypeSimple:
		return "simple"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// Value is a single CBOR data item. The set of implementations is closed and
// consists of the types declared in this package.
type Value interface {
	// Type of this Value's variant.
	Type() Type

	// String returns a diagnostic notation of this Value.
	String() string

	isValue()
}

// Undefined is the simple value undefined (0xF7).
type Undefined struct{}

// Null is the simple value null (0xF6).
type Null struct{}

// Bool is one of the simple values false (0xF4) or true (0xF5).
type Bool bool

// UInt is an unsigned integer of major type 0.
type UInt uint64

// Int is a signed integer. Negative values are encoded as major type 1,
// non-negative ones as major type 0. The decoder produces an Int only for
// major type 1, but Equal compares UInt and Int by their numeric value.
type Int int64

// Bytes is a byte string of major type 2.
type Bytes []byte

// Text is an UTF-8 string of major type 3.
type Text string

// DateTime is a standard date/time string, tag 0.
type DateTime string

// EpochTime is an epoch-based date/time in seconds, tag 1.
type EpochTime uint64

// UBignum is an unsigned bignum, tag 2. It holds the big-endian magnitude.
type UBignum []byte

// IBignum is a negative bignum, tag 3. It holds the big-endian magnitude n of
// the value -1-n.
type IBignum []byte

// DecimalFraction is tag 4, an array of exponent and mantissa.
type DecimalFraction [2]Value

// Bigfloat is tag 5, an array of exponent and mantissa.
type Bigfloat [2]Value

// Tag is a generic tagged data item of major type 6. Tags with a dedicated
// type in this package are only represented as Tag if their content does not
// fit that type.
type Tag struct {
	Number  uint64
	Content Value
}

// Simple is a simple value of major type 7 without its own type. Valid values
// are 0 to 19 and 32 to 255.
type Simple uint8

// Float32 is a single-precision float. Half-precision floats are decoded to
// Float32 as well.
type Float32 float32

// Float64 is a double-precision float.
type Float64 float64

func (Undefined) Type() Type       { return TypeUndefined }
func (Null) Type() Type            { return TypeNull }
func (Bool) Type() Type            { return TypeBool }
func (UInt) Type() Type            { return TypeUInt }
func (Int) Type() Type             { return TypeInt }
func (Bytes) Type() Type           { return TypeBytes }
func (Text) Type() Type            { return TypeText }
func (*Array) Type() Type          { return TypeArray }
func (*Map) Type() Type            { return TypeMap }
func (DateTime) Type() Type        { return TypeDateTime }
func (EpochTime) Type() Type       { return TypeEpochTime }
func (UBignum) Type() Type         { return TypeUBignum }
func (IBignum) Type() Type         { return TypeIBignum }
func (DecimalFraction) Type() Type { return TypeDecimalFraction }
func (Bigfloat) Type() Type        { return TypeBigfloat }
func (Tag) Type() Type             { return TypeTag }
func (Simple) Type() Type          { return TypeSimple }
func (Float32) Type() Type         { return TypeFloat32 }
func (Float64) Type() Type         { return TypeFloat64 }

func (Undefined) isValue()       {}
func (Null) isValue()            {}
func (Bool) isValue()            {}
func (UInt) isValue()            {}
func (Int) isValue()             {}
func (Bytes) isValue()           {}
func (Text) isValue()            {}
func (*Array) isValue()          {}
func (*Map) isValue()            {}
func (DateTime) isValue()        {}
func (EpochTime) isValue()       {}
func (UBignum) isValue()         {}
func (IBignum) isValue()         {}
func (DecimalFraction) isValue() {}
func (Bigfloat) isValue()        {}
func (Tag) isValue()             {}
func (Simple) isValue()          {}
func (Float32) isValue()         {}
func (Float64) isValue()         {}

// NewUBignum creates an UBignum from a non-negative big.Int.
func NewUBignum(i *big.Int) (UBignum, error) {
	if i.Sign() < 0 {
		return nil, fmt.Errorf("ubignum must not be negative, got %v", i)
	}
	return UBignum(i.Bytes()), nil
}

// Int returns the UBignum's value.
func (u UBignum) Int() *big.Int {
	return new(big.Int).SetBytes(u)
}

// NewIBignum creates an IBignum from a negative big.Int.
func NewIBignum(i *big.Int) (IBignum, error) {
	if i.Sign() >= 0 {
		return nil, fmt.Errorf("ibignum must be negative, got %v", i)
	}
	n := new(big.Int).Neg(i)
	n.Sub(n, big.NewInt(1))
	return IBignum(n.Bytes()), nil
}

// Int returns the IBignum's value.
func (n IBignum) Int() *big.Int {
	i := new(big.Int).SetBytes(n)
	i.Add(i, big.NewInt(1))
	return i.Neg(i)
}

// AsUInt returns v's value if it is a non-negative integer.
func AsUInt(v Value) (uint64, bool) {
	switch v := v.(type) {
	case UInt:
		return uint64(v), true
	case Int:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// AsBytes returns the content of a byte or text string.
func AsBytes(v Value) ([]byte, bool) {
	switch v := v.(type) {
	case Bytes:
		return []byte(v), true
	case Text:
		return []byte(v), true
	default:
		return nil, false
	}
}

// AsString returns the content of a text or byte string as a string.
func AsString(v Value) (string, bool) {
	switch v := v.(type) {
	case Text:
		return string(v), true
	case Bytes:
		return string(v), true
	default:
		return "", false
	}
}
