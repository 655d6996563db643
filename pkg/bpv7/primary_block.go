// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

const dtnVersion uint64 = 7

// Field positions within a primary block.
const (
	pbVersion = iota
	pbFlags
	pbCRCType
	pbDestination
	pbSource
	pbReportTo
	pbTimestamp
	pbLifetime
	pbFragmentOffset
	pbTotalDataLength
)

const (
	primaryBlockMinLen = 8
	primaryBlockMaxLen = 11
)

// PrimaryBlockParams are the fields of a new primary block. An empty ReportTo
// defaults to the Source. The fragment fields are only used if the IsFragment
// flag is set.
type PrimaryBlockParams struct {
	Flags   BundleControlFlags
	CRCType CRCType

	Destination string
	Source      string
	ReportTo    string

	CreationTime   uint64
	SequenceNumber uint64
	Lifetime       uint64

	FragmentOffset  uint64
	TotalDataLength uint64
}

// primaryBlockLen is the number of fields a primary block must have.
func primaryBlockLen(flags BundleControlFlags, crcType CRCType) int {
	n := primaryBlockMinLen
	if flags.Has(IsFragment) {
		n += 2
	}
	if crcType != CRCNo {
		n++
	}
	return n
}

func newPrimaryBlock(p PrimaryBlockParams) *cbor.Array {
	if p.ReportTo == "" {
		p.ReportTo = p.Source
	}

	block := cbor.NewArray(
		cbor.UInt(dtnVersion),
		cbor.UInt(p.Flags),
		cbor.UInt(p.CRCType),
		cbor.Bytes(p.Destination),
		cbor.Bytes(p.Source),
		cbor.Bytes(p.ReportTo),
		cbor.NewArray(cbor.UInt(p.CreationTime), cbor.UInt(p.SequenceNumber)),
		cbor.UInt(p.Lifetime))

	if p.Flags.Has(IsFragment) {
		block.Push(cbor.UInt(p.FragmentOffset))
		block.Push(cbor.UInt(p.TotalDataLength))
	}
	if p.CRCType != CRCNo {
		block.Push(emptyCRC(p.CRCType))
	}
	return block
}

func uintField(block *cbor.Array, i int) (uint64, bool) {
	return cbor.AsUInt(block.Get(i))
}

// isEndpoint checks if v might be an endpoint. Endpoints are plain strings,
// either byte or text strings.
func isEndpoint(v cbor.Value) bool {
	switch v.(type) {
	case cbor.Bytes, cbor.Text:
		return true
	default:
		return false
	}
}

func isTimestamp(v cbor.Value) bool {
	ts, ok := v.(*cbor.Array)
	if !ok || ts.Len() != 2 {
		return false
	}
	_, okTime := cbor.AsUInt(ts.Get(0))
	_, okSeq := cbor.AsUInt(ts.Get(1))
	return okTime && okSeq
}

// checkCRC compares a block's CRC field against its calculated value. If raw
// is not nil, it must be the received encoding of this block.
func checkCRC(block *cbor.Array, raw []byte, crcType CRCType) error {
	value, ok := block.Get(block.Len() - 1).(cbor.Bytes)
	if !ok || len(value) != crcType.Len() {
		return fmt.Errorf("CRC field is no byte string of length %d", crcType.Len())
	}

	var (
		expected []byte
		err      error
	)
	if raw != nil {
		expected, err = rawBlockCRC(raw, crcType)
	} else {
		expected, err = blockCRC(block, crcType)
	}
	if err != nil {
		return err
	}

	if string(expected) != string(value) {
		return fmt.Errorf("%w: expected %x, got %x", ErrCRCMismatch, expected, []byte(value))
	}
	return nil
}

// checkPrimaryBlock validates the structure and CRC of a primary block. The
// CRC is calculated over raw, if present, or over the block's encoding.
func checkPrimaryBlock(block *cbor.Array, raw []byte) (errs error) {
	l := block.Len()
	if l < primaryBlockMinLen || l > primaryBlockMaxLen {
		return fmt.Errorf("primary block has %d fields, expected %d to %d",
			l, primaryBlockMinLen, primaryBlockMaxLen)
	}

	if version, ok := uintField(block, pbVersion); !ok || version != dtnVersion {
		errs = multierror.Append(errs, fmt.Errorf("primary block: wrong version %v", block.Get(pbVersion)))
	}

	flags, flagsOk := uintField(block, pbFlags)
	if !flagsOk {
		errs = multierror.Append(errs, fmt.Errorf("primary block: flags are no uint"))
	}

	crcValue, crcOk := uintField(block, pbCRCType)
	crcType := CRCType(crcValue)
	if !crcOk {
		errs = multierror.Append(errs, fmt.Errorf("primary block: CRC type is no uint"))
	} else if err := crcType.CheckValid(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("primary block: %w", err))
		crcOk = false
	}

	for _, f := range []struct {
		pos  int
		name string
	}{{pbDestination, "destination"}, {pbSource, "source"}, {pbReportTo, "report-to"}} {
		if !isEndpoint(block.Get(f.pos)) {
			errs = multierror.Append(errs, fmt.Errorf("primary block: %s is no string", f.name))
		}
	}

	if !isTimestamp(block.Get(pbTimestamp)) {
		errs = multierror.Append(errs, fmt.Errorf("primary block: timestamp is no array of two uints"))
	}

	if _, ok := uintField(block, pbLifetime); !ok {
		errs = multierror.Append(errs, fmt.Errorf("primary block: lifetime is no uint"))
	}

	if !flagsOk || !crcOk {
		return
	}

	bcf := BundleControlFlags(flags)
	if expected := primaryBlockLen(bcf, crcType); l != expected {
		errs = multierror.Append(errs, fmt.Errorf("primary block has %d fields, expected %d for flags %v and CRC %v",
			l, expected, bcf, crcType))
		return
	}

	if bcf.Has(IsFragment) {
		if _, ok := uintField(block, pbFragmentOffset); !ok {
			errs = multierror.Append(errs, fmt.Errorf("primary block: fragment offset is no uint"))
		}
		if _, ok := uintField(block, pbTotalDataLength); !ok {
			errs = multierror.Append(errs, fmt.Errorf("primary block: total data length is no uint"))
		}
	}

	if crcType != CRCNo && errs == nil {
		if err := checkCRC(block, raw, crcType); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("primary block: %w", err))
		}
	}

	return
}

// checkPrimaryPrefix inspects an incomplete primary block, starting with its
// array head. It fails if any field already present is invalid.
func (d *Decoder) checkPrimaryPrefix(buf []byte) bool {
	count := int(buf[0] & 0x1f)
	pos := 1

	var (
		flags   BundleControlFlags
		crcType CRCType
	)

	for i := 0; i < count; i++ {
		if pos >= len(buf) {
			return true
		}

		major := buf[pos] >> 5
		switch {
		case i == pbDestination || i == pbSource || i == pbReportTo:
			if major != 2 && major != 3 {
				return false
			}
		case i == pbTimestamp:
			if buf[pos] != 0x82 {
				return false
			}
		case i > pbLifetime && i == count-1 && crcType != CRCNo:
			if major != 2 {
				return false
			}
		default:
			if major != 0 {
				return false
			}
		}

		m, v, n := d.cbor.Decode(buf[pos:])
		switch m {
		case cbor.NoMatch:
			return false
		case cbor.Partial:
			return true
		}

		switch i {
		case pbVersion:
			if version, _ := cbor.AsUInt(v); version != dtnVersion {
				return false
			}
		case pbFlags:
			f, _ := cbor.AsUInt(v)
			flags = BundleControlFlags(f)
		case pbCRCType:
			c, _ := cbor.AsUInt(v)
			crcType = CRCType(c)
			if crcType.CheckValid() != nil || primaryBlockLen(flags, crcType) != count {
				return false
			}
		case pbTimestamp:
			if !isTimestamp(v) {
				return false
			}
		}

		pos += n
	}
	return true
}
