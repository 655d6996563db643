// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/hex"

	"github.com/goccy/go-json"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

type jsonPrimaryBlock struct {
	Version  uint64   `json:"version"`
	Flags    []string `json:"flags,omitempty"`
	CRCType  string   `json:"crcType"`
	CRC      string   `json:"crc,omitempty"`
	Lifetime uint64   `json:"lifetime"`

	Destination string `json:"destination"`
	Source      string `json:"source"`
	ReportTo    string `json:"reportTo"`

	CreationTime   uint64 `json:"creationTime"`
	SequenceNumber uint64 `json:"sequenceNumber"`

	FragmentOffset  *uint64 `json:"fragmentOffset,omitempty"`
	TotalDataLength *uint64 `json:"totalDataLength,omitempty"`
}

type jsonCanonicalBlock struct {
	Code    uint64   `json:"blockTypeCode"`
	Number  uint64   `json:"blockNumber"`
	Flags   []string `json:"flags,omitempty"`
	CRCType string   `json:"crcType"`
	CRC     string   `json:"crc,omitempty"`
	Data    []byte   `json:"data"`
}

// crcValue returns the hex CRC value of a block with a CRC field.
func crcValue(block *cbor.Array, crcType CRCType) string {
	if crcType == CRCNo {
		return ""
	}
	if value, ok := block.Get(block.Len() - 1).(cbor.Bytes); ok {
		return hex.EncodeToString(value)
	}
	return ""
}

// MarshalJSON creates a human-readable JSON representation of this Bundle.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	if b.primary() == nil {
		return nil, ErrNoPrimaryBlock
	}

	creationTime, sequence := b.Timestamp()
	primary := jsonPrimaryBlock{
		Version:  b.Version(),
		Flags:    b.Flags().Strings(),
		CRCType:  b.CRCType().String(),
		CRC:      crcValue(b.primary(), b.CRCType()),
		Lifetime: b.Lifetime(),

		Destination: b.Destination(),
		Source:      b.Source(),
		ReportTo:    b.ReportTo(),

		CreationTime:   creationTime,
		SequenceNumber: sequence,
	}
	if b.IsFragment() {
		offset, total := b.FragmentOffset(), b.TotalDataLength()
		primary.FragmentOffset = &offset
		primary.TotalDataLength = &total
	}

	var blocks []jsonCanonicalBlock
	for _, cb := range b.Blocks() {
		blocks = append(blocks, jsonCanonicalBlock{
			Code:    cb.Code(),
			Number:  cb.Number(),
			Flags:   cb.Flags().Strings(),
			CRCType: cb.CRCType().String(),
			CRC:     crcValue(cb.block, cb.CRCType()),
			Data:    cb.Data(),
		})
	}

	return json.Marshal(&struct {
		PrimaryBlock    jsonPrimaryBlock     `json:"primaryBlock"`
		CanonicalBlocks []jsonCanonicalBlock `json:"canonicalBlocks"`
	}{primary, blocks})
}
