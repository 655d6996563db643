// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"fmt"
	"io"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// blockBase returns the number of fields of a block without its CRC field.
func (b *Bundle) blockBase(i int) int {
	if i == 0 {
		return primaryBlockLen(b.Flags(), CRCNo)
	}
	return canonicalBlockMinLen
}

func blockCRCType(block *cbor.Array, i int) CRCType {
	pos := cbCRCType
	if i == 0 {
		pos = pbCRCType
	}
	crcType, _ := uintField(block, pos)
	return CRCType(crcType)
}

// UpdateCRC creates missing CRC fields and calculates all CRC values. It must
// be called after modifying an already CRC protected block.
func (b *Bundle) UpdateCRC() error {
	for i := 0; i < b.blocks.Len(); i++ {
		block, ok := b.blocks.Get(i).(*cbor.Array)
		if !ok {
			return fmt.Errorf("block %d is no array", i)
		}

		crcType := blockCRCType(block, i)
		if err := crcType.CheckValid(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}

		resizeCRCSlot(block, b.blockBase(i), crcType)
		if crcType == CRCNo {
			continue
		}
		if block.Len() != b.blockBase(i)+1 {
			return fmt.Errorf("block %d has %d fields, no place for a CRC", i, block.Len())
		}

		value, err := blockCRC(block, crcType)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		_ = block.Set(block.Len()-1, cbor.Bytes(value))
	}
	return nil
}

// prepare refreshes all CRC values and validates the Bundle for encoding.
func (b *Bundle) prepare() error {
	if err := b.UpdateCRC(); err != nil {
		return err
	}
	return b.CheckValid()
}

// EncodingSize returns an upper bound for the length of this Bundle's
// encoding, including CRC fields which are not yet present.
func (b *Bundle) EncodingSize() (int, error) {
	size, err := cbor.IndefiniteArraySize(b.blocks)
	if err != nil {
		return 0, err
	}

	for i := 0; i < b.blocks.Len(); i++ {
		if block, ok := b.blocks.Get(i).(*cbor.Array); ok && block.Len() == b.blockBase(i) {
			if crcType := blockCRCType(block, i); crcType != CRCNo {
				size += 1 + crcType.Len()
			}
		}
	}
	return size, nil
}

// Encode this Bundle into buf and return the number of written bytes. Before,
// all CRC values are refreshed and the Bundle is validated.
func (b *Bundle) Encode(buf []byte) (int, error) {
	if err := b.prepare(); err != nil {
		return 0, err
	}
	return cbor.EncodeIndefiniteArray(b.blocks, buf)
}

// Marshal returns this Bundle's encoding, like Encode.
func (b *Bundle) Marshal() ([]byte, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	return cbor.MarshalIndefiniteArray(b.blocks)
}

// MarshalCbor writes this Bundle's encoding to w.
func (b *Bundle) MarshalCbor(w io.Writer) error {
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// UnmarshalCbor reads a Bundle from r. As the length of a Bundle is unknown
// in advance, r is read until its end and must contain exactly one Bundle.
func (b *Bundle) UnmarshalCbor(r io.Reader) error {
	var buff bytes.Buffer
	if _, err := buff.ReadFrom(r); err != nil {
		return err
	}

	data := buff.Bytes()
	m, decoded, n := Decode(data)
	switch {
	case m == cbor.Partial:
		return io.ErrUnexpectedEOF
	case m == cbor.NoMatch:
		return ErrMalformedBundle
	case n != len(data):
		return fmt.Errorf("%d bytes of trailing data after bundle", len(data)-n)
	}

	*b = *decoded
	return nil
}
