// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// Field positions within a canonical block.
const (
	cbCode = iota
	cbNumber
	cbFlags
	cbCRCType
	cbData
)

const canonicalBlockMinLen = 5

// canonicalBlockLen is the number of fields a canonical block must have.
func canonicalBlockLen(crcType CRCType) int {
	if crcType != CRCNo {
		return canonicalBlockMinLen + 1
	}
	return canonicalBlockMinLen
}

func newCanonicalBlock(code, number uint64, flags BlockControlFlags, crcType CRCType, data []byte) *cbor.Array {
	block := cbor.NewArray(
		cbor.UInt(code),
		cbor.UInt(number),
		cbor.UInt(flags),
		cbor.UInt(crcType),
		cbor.Bytes(data))

	if crcType != CRCNo {
		block.Push(emptyCRC(crcType))
	}
	return block
}

// checkCanonicalBlock validates the structure and CRC of a canonical block.
// The CRC is calculated over raw, if present, or over the block's encoding.
func checkCanonicalBlock(block *cbor.Array, raw []byte) (errs error) {
	l := block.Len()
	if l < canonicalBlockMinLen || l > canonicalBlockMinLen+1 {
		return fmt.Errorf("canonical block has %d fields, expected 5 or 6", l)
	}

	for _, f := range []struct {
		pos  int
		name string
	}{{cbCode, "block type code"}, {cbNumber, "block number"}, {cbFlags, "flags"}} {
		if _, ok := uintField(block, f.pos); !ok {
			errs = multierror.Append(errs, fmt.Errorf("canonical block: %s is no uint", f.name))
		}
	}

	if _, ok := cbor.AsBytes(block.Get(cbData)); !ok {
		errs = multierror.Append(errs, fmt.Errorf("canonical block: data is no string"))
	}

	crcValue, ok := uintField(block, cbCRCType)
	crcType := CRCType(crcValue)
	if !ok {
		return multierror.Append(errs, fmt.Errorf("canonical block: CRC type is no uint"))
	} else if err := crcType.CheckValid(); err != nil {
		return multierror.Append(errs, fmt.Errorf("canonical block: %w", err))
	}

	if expected := canonicalBlockLen(crcType); l != expected {
		return multierror.Append(errs, fmt.Errorf("canonical block has %d fields, expected %d for CRC %v",
			l, expected, crcType))
	}

	if crcType != CRCNo && errs == nil {
		if err := checkCRC(block, raw, crcType); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("canonical block: %w", err))
		}
	}

	return
}

// CanonicalBlock is a view on one of a Bundle's canonical blocks. Changes
// through a CanonicalBlock apply to its Bundle. CRC values are refreshed when
// the Bundle is encoded or by Bundle.UpdateCRC.
type CanonicalBlock struct {
	block *cbor.Array
}

// Code is this block's type code.
func (cb CanonicalBlock) Code() uint64 {
	code, _ := uintField(cb.block, cbCode)
	return code
}

// Number is this block's number, unique within its Bundle.
func (cb CanonicalBlock) Number() uint64 {
	number, _ := uintField(cb.block, cbNumber)
	return number
}

// Flags are this block's Block Processing Control Flags.
func (cb CanonicalBlock) Flags() BlockControlFlags {
	flags, _ := uintField(cb.block, cbFlags)
	return BlockControlFlags(flags)
}

// SetFlags replaces this block's Block Processing Control Flags.
func (cb CanonicalBlock) SetFlags(flags BlockControlFlags) {
	_ = cb.block.Set(cbFlags, cbor.UInt(flags))
}

// CRCType of this block.
func (cb CanonicalBlock) CRCType() CRCType {
	crcType, _ := uintField(cb.block, cbCRCType)
	return CRCType(crcType)
}

// SetCRCType changes this block's CRC type and resizes its CRC field.
func (cb CanonicalBlock) SetCRCType(crcType CRCType) error {
	if err := crcType.CheckValid(); err != nil {
		return err
	}

	_ = cb.block.Set(cbCRCType, cbor.UInt(crcType))
	resizeCRCSlot(cb.block, canonicalBlockMinLen, crcType)
	return nil
}

// Data is this block's type-specific data.
func (cb CanonicalBlock) Data() []byte {
	data, _ := cbor.AsBytes(cb.block.Get(cbData))
	return data
}

// SetData replaces this block's type-specific data.
func (cb CanonicalBlock) SetData(data []byte) {
	_ = cb.block.Set(cbData, cbor.Bytes(data))
}

// Raw is this block's CBOR array.
func (cb CanonicalBlock) Raw() *cbor.Array {
	return cb.block
}

func (cb CanonicalBlock) String() string {
	return fmt.Sprintf("block(code=%d, number=%d, flags=%v, crc=%v, len=%d)",
		cb.Code(), cb.Number(), cb.Flags(), cb.CRCType(), len(cb.Data()))
}

// resizeCRCSlot adds, replaces, or removes the trailing CRC field of a block
// with base fields, so that it fits crcType.
func resizeCRCSlot(block *cbor.Array, base int, crcType CRCType) {
	switch l := block.Len(); {
	case crcType == CRCNo:
		if l == base+1 {
			_, _ = block.PopBack()
		}

	case l == base:
		block.Push(emptyCRC(crcType))

	case l == base+1:
		if value, ok := block.Get(l - 1).(cbor.Bytes); !ok || len(value) != crcType.Len() {
			_ = block.Set(l-1, emptyCRC(crcType))
		}
	}
}
