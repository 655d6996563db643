// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cbor implements an in-memory CBOR value model together with an
// incremental decoder and a canonical encoder, as defined in RFC 8949.
//
// Decoding never blocks. Instead, it reports whether the given bytes form a
// complete item, only an incomplete prefix of one, or cannot be CBOR at all.
// This allows a caller to consume items from a byte stream without knowing
// their length in advance.
//
//	m, v, n := cbor.Decode(buf)
//	switch m {
//	case cbor.Full:
//	  // v is valid, the next item starts at buf[n:]
//	case cbor.Partial:
//	  // read more bytes and retry from buf[0]
//	case cbor.NoMatch:
//	  // malformed input, discard
//	}
//
// Resource limits for untrusted input are part of a Decoder. The package level
// Decode function uses DefaultLimits.
package cbor
