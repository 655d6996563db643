// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// diag returns the diagnostic notation of v, accepting nil values.
func diag(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

func diagFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func diagTag(number uint64, content string) string {
	return strconv.FormatUint(number, 10) + "(" + content + ")"
}

func (Undefined) String() string { return "undefined" }
func (Null) String() string      { return "null" }

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (u UInt) String() string { return strconv.FormatUint(uint64(u), 10) }
func (i Int) String() string  { return strconv.FormatInt(int64(i), 10) }

func (b Bytes) String() string { return "h'" + hex.EncodeToString(b) + "'" }
func (t Text) String() string  { return strconv.Quote(string(t)) }

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, v := range a.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(diag(v))
	}
	sb.WriteString("]")
	return sb.String()
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(diag(e.key))
		sb.WriteString(": ")
		sb.WriteString(diag(e.value))
	}
	sb.WriteString("}")
	return sb.String()
}

func (d DateTime) String() string  { return diagTag(tagDateTime, Text(d).String()) }
func (e EpochTime) String() string { return diagTag(tagEpochTime, UInt(e).String()) }
func (u UBignum) String() string   { return diagTag(tagUBignum, Bytes(u).String()) }
func (n IBignum) String() string   { return diagTag(tagIBignum, Bytes(n).String()) }

func (d DecimalFraction) String() string {
	return diagTag(tagDecimalFraction, "["+diag(d[0])+", "+diag(d[1])+"]")
}

func (b Bigfloat) String() string {
	return diagTag(tagBigfloat, "["+diag(b[0])+", "+diag(b[1])+"]")
}

func (t Tag) String() string { return diagTag(t.Number, diag(t.Content)) }

func (s Simple) String() string { return "simple(" + strconv.Itoa(int(s)) + ")" }

func (f Float32) String() string { return diagFloat(float64(f), 32) }
func (f Float64) String() string { return diagFloat(float64(f), 64) }
