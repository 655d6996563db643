// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"errors"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// ErrMalformedBundle is returned for input which is no valid Bundle.
var ErrMalformedBundle = errors.New("malformed bundle")

// Decoder decodes Bundles under a fixed set of CBOR Limits. A Decoder is
// immutable and safe for concurrent use.
type Decoder struct {
	cbor *cbor.Decoder
}

// NewDecoder creates a Decoder for the given Limits.
func NewDecoder(limits cbor.Limits) *Decoder {
	return &Decoder{cbor: cbor.NewDecoder(limits)}
}

var defaultDecoder = NewDecoder(cbor.DefaultLimits())

// Decode the first Bundle of buf with default Limits.
func Decode(buf []byte) (cbor.Match, *Bundle, int) {
	return defaultDecoder.Decode(buf)
}

// NewReader creates a Stream of Bundles from r. A nil Decoder uses default
// Limits.
func NewReader(r io.Reader, d *Decoder) *cbor.Stream[*Bundle] {
	if d == nil {
		d = defaultDecoder
	}
	return cbor.NewStream[*Bundle](r, d.Decode)
}

func reject(reason string, err error, pos int) (cbor.Match, *Bundle, int) {
	entry := log.WithField("position", pos)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debugf("Rejecting bundle: %s", reason)

	return cbor.NoMatch, nil, 0
}

// Decode the first Bundle of buf. Every block is validated as soon as it is
// complete, CRC values are checked against the received bytes.
//
// On Full, the returned int is the length of the Bundle's encoding. On
// Partial, it is the end of the last complete block.
func (d *Decoder) Decode(buf []byte) (cbor.Match, *Bundle, int) {
	if len(buf) == 0 {
		return cbor.Partial, nil, 0
	}
	if buf[0] != cbor.IndefiniteArray {
		return reject("no indefinite-length array", nil, 0)
	}

	blocks := cbor.NewArray()
	pos := 1

	for {
		if pos >= len(buf) {
			return cbor.Partial, nil, pos
		}

		isPrimary := blocks.Len() == 0
		switch hb := buf[pos]; {
		case isPrimary && (hb < 0x88 || hb > 0x8b):
			return reject("primary block is no array of 8 to 11 items", nil, pos)

		case !isPrimary && hb == cbor.BreakCode:
			if blocks.Len() < 2 {
				return reject("bundle without canonical block", nil, pos)
			}

			b := &Bundle{blocks: blocks}
			if err := b.checkValid(false); err != nil {
				return reject("invalid block sequence", err, pos)
			}
			return cbor.Full, b, pos + 1

		case !isPrimary && hb != 0x85 && hb != 0x86:
			return reject("canonical block is no array of 5 or 6 items", nil, pos)
		}

		m, v, n := d.cbor.Decode(buf[pos:])
		switch m {
		case cbor.NoMatch:
			return reject("block is no valid CBOR", nil, pos)

		case cbor.Partial:
			if isPrimary && !d.checkPrimaryPrefix(buf[pos:]) {
				return reject("incomplete primary block is invalid", nil, pos)
			}
			return cbor.Partial, nil, pos
		}

		block := v.(*cbor.Array)
		raw := buf[pos : pos+n]

		if isPrimary {
			if err := checkPrimaryBlock(block, raw); err != nil {
				return reject("invalid primary block", err, pos)
			}
		} else if err := checkCanonicalBlock(block, raw); err != nil {
			return reject("invalid canonical block", err, pos)
		}

		blocks.Push(block)
		pos += n
	}
}
