// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/howeyc/crc16"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// CRCType indicates which CRC type is used. Only the three defined consts
// CRCNo, CRC16 and CRC32 are valid.
type CRCType uint64

const (
	// CRCNo means no CRC to be present at all.
	CRCNo CRCType = 0

	// CRC16 represents "a standard X-25 CRC-16".
	CRC16 CRCType = 1

	// CRC32 represents "a standard CRC32C (Castagnoli) CRC-32".
	CRC32 CRCType = 2
)

func (c CRCType) String() string {
	switch c {
	case CRCNo:
		return "no"
	case CRC16:
		return "16"
	case CRC32:
		return "32"
	default:
		return "unknown"
	}
}

// Len is the number of bytes of this CRC type's value.
func (c CRCType) Len() int {
	switch c {
	case CRC16:
		return 2
	case CRC32:
		return 4
	default:
		return 0
	}
}

// CheckValid errors for an unknown CRC type.
func (c CRCType) CheckValid() error {
	if c > CRC32 {
		return fmt.Errorf("unknown CRCType %d", c)
	}
	return nil
}

var (
	crc16table = crc16.MakeTable(crc16.CCITT)
	crc32table = crc32.MakeTable(crc32.Castagnoli)
)

// checksum calculates the big-endian CRC value of data.
func checksum(data []byte, crcType CRCType) ([]byte, error) {
	switch crcType {
	case CRC16:
		return binary.BigEndian.AppendUint16(nil, crc16.Checksum(data, crc16table)), nil

	case CRC32:
		return binary.BigEndian.AppendUint32(nil, crc32.Checksum(data, crc32table)), nil

	default:
		return nil, fmt.Errorf("no checksum for CRCType %d", crcType)
	}
}

// emptyCRC returns the placeholder for a CRC value of the given type.
func emptyCRC(crcType CRCType) cbor.Bytes {
	return make(cbor.Bytes, crcType.Len())
}

// blockCRC calculates the CRC of a block array whose last element is the CRC
// slot. The slot is zeroed for the calculation.
func blockCRC(block *cbor.Array, crcType CRCType) ([]byte, error) {
	items := block.Values()
	items[len(items)-1] = emptyCRC(crcType)

	data, err := cbor.Marshal(cbor.NewArray(items...))
	if err != nil {
		return nil, err
	}
	return checksum(data, crcType)
}

// rawBlockCRC calculates the CRC over a block's received encoding. The CRC
// value is the content of the final byte string, which is zeroed for the
// calculation.
func rawBlockCRC(raw []byte, crcType CRCType) ([]byte, error) {
	n := crcType.Len()
	if len(raw) < n+1 || raw[len(raw)-n-1] != 0x40|byte(n) {
		return nil, fmt.Errorf("CRC value is no definite byte string of length %d", n)
	}

	data := make([]byte, len(raw))
	copy(data, raw[:len(raw)-n])
	return checksum(data, crcType)
}
