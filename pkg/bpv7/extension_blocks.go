// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"fmt"

	"github.com/dtn7/cboring"
)

const (
	// ExtBlockTypePreviousNodeBlock is the block type code of a Previous Node Block.
	ExtBlockTypePreviousNodeBlock uint64 = 6

	// ExtBlockTypeBundleAgeBlock is the block type code of a Bundle Age Block.
	ExtBlockTypeBundleAgeBlock uint64 = 7

	// ExtBlockTypeHopCountBlock is the block type code of a Hop Count Block.
	ExtBlockTypeHopCountBlock uint64 = 10
)

// HopCount is the content of a Hop Count Block.
type HopCount struct {
	Limit uint64
	Count uint64
}

// IsExceeded returns true if the hop limit exceeded.
func (hc HopCount) IsExceeded() bool {
	return hc.Count > hc.Limit
}

// blockData returns the data of the first block of the given type.
func (b *Bundle) blockData(code uint64) (*bytes.Reader, error) {
	cb, ok := b.BlockByCode(code)
	if !ok {
		return nil, fmt.Errorf("bundle has no block of type %d", code)
	}
	return bytes.NewReader(cb.Data()), nil
}

// setBlockData replaces or creates the single block of the given type.
func (b *Bundle) setBlockData(code uint64, crcType CRCType, data []byte) error {
	if cb, ok := b.BlockByCode(code); ok {
		cb.SetData(data)
		return nil
	}
	_, err := b.AddBlock(code, 0, 0, crcType, data)
	return err
}

// AddPreviousNode adds or updates the Previous Node Block.
func (b *Bundle) AddPreviousNode(node string, crcType CRCType) error {
	buff := new(bytes.Buffer)
	if err := cboring.WriteByteString([]byte(node), buff); err != nil {
		return err
	}
	return b.setBlockData(ExtBlockTypePreviousNodeBlock, crcType, buff.Bytes())
}

// PreviousNode returns the node of the Previous Node Block.
func (b *Bundle) PreviousNode() (string, error) {
	r, err := b.blockData(ExtBlockTypePreviousNodeBlock)
	if err != nil {
		return "", err
	}

	node, err := cboring.ReadByteString(r)
	if err != nil {
		return "", fmt.Errorf("previous node block: %w", err)
	}
	return string(node), nil
}

// AddBundleAge adds or updates the Bundle Age Block with an age in milliseconds.
func (b *Bundle) AddBundleAge(age uint64, crcType CRCType) error {
	buff := new(bytes.Buffer)
	if err := cboring.WriteUInt(age, buff); err != nil {
		return err
	}
	return b.setBlockData(ExtBlockTypeBundleAgeBlock, crcType, buff.Bytes())
}

// BundleAge returns the age in milliseconds of the Bundle Age Block.
func (b *Bundle) BundleAge() (uint64, error) {
	r, err := b.blockData(ExtBlockTypeBundleAgeBlock)
	if err != nil {
		return 0, err
	}

	age, err := cboring.ReadUInt(r)
	if err != nil {
		return 0, fmt.Errorf("bundle age block: %w", err)
	}
	return age, nil
}

// AddHopCount adds or updates the Hop Count Block.
func (b *Bundle) AddHopCount(hc HopCount, crcType CRCType) error {
	buff := new(bytes.Buffer)
	if err := cboring.WriteArrayLength(2, buff); err != nil {
		return err
	}
	for _, f := range []uint64{hc.Limit, hc.Count} {
		if err := cboring.WriteUInt(f, buff); err != nil {
			return err
		}
	}
	return b.setBlockData(ExtBlockTypeHopCountBlock, crcType, buff.Bytes())
}

// HopCount returns the content of the Hop Count Block.
func (b *Bundle) HopCount() (hc HopCount, err error) {
	r, err := b.blockData(ExtBlockTypeHopCountBlock)
	if err != nil {
		return
	}

	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		err = fmt.Errorf("hop count block: %w", lErr)
		return
	} else if l != 2 {
		err = fmt.Errorf("hop count block: expected array with length 2, got %d", l)
		return
	}

	for _, f := range []*uint64{&hc.Limit, &hc.Count} {
		if *f, err = cboring.ReadUInt(r); err != nil {
			err = fmt.Errorf("hop count block: %w", err)
			return
		}
	}
	return
}

// IncrementHopCount increments the Hop Count Block's counter and reports if
// the limit is exceeded afterwards.
func (b *Bundle) IncrementHopCount() (bool, error) {
	hc, err := b.HopCount()
	if err != nil {
		return false, err
	}

	hc.Count++
	if err := b.AddHopCount(hc, CRCNo); err != nil {
		return false, err
	}
	return hc.IsExceeded(), nil
}
