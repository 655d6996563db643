// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"testing"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

func TestPrimaryBlockLen(t *testing.T) {
	tests := []struct {
		flags   BundleControlFlags
		crcType CRCType
		length  int
	}{
		{0, CRCNo, 8},
		{0, CRC16, 9},
		{IsFragment, CRCNo, 10},
		{IsFragment | MustNotFragmented, CRC32, 11},
	}

	for _, test := range tests {
		params := PrimaryBlockParams{
			Flags:       test.flags,
			CRCType:     test.crcType,
			Destination: "dtn://dest/",
			Source:      "dtn://src/",
		}

		block := newPrimaryBlock(params)
		if l := primaryBlockLen(test.flags, test.crcType); l != test.length || block.Len() != l {
			t.Fatalf("%v, %v: expected %d fields, got %d and %d", test.flags, test.crcType, test.length, l, block.Len())
		}
		if err := checkPrimaryBlock(block, nil); (err == nil) != (test.crcType == CRCNo) {
			t.Fatalf("%v, %v: unexpected result %v", test.flags, test.crcType, err)
		}
	}
}

func TestCheckPrimaryBlock(t *testing.T) {
	valid := func() *cbor.Array {
		return newPrimaryBlock(PrimaryBlockParams{
			Destination:  "dtn://dest/",
			Source:       "dtn://src/",
			CreationTime: 1,
			Lifetime:     1000,
		})
	}

	tests := []struct {
		name   string
		mutate func(pb *cbor.Array)
		valid  bool
	}{
		{"valid", func(*cbor.Array) {}, true},
		{"text endpoint", func(pb *cbor.Array) { _ = pb.Set(pbReportTo, cbor.Text("dtn:none")) }, true},
		{"version", func(pb *cbor.Array) { _ = pb.Set(pbVersion, cbor.UInt(6)) }, false},
		{"negative flags", func(pb *cbor.Array) { _ = pb.Set(pbFlags, cbor.Int(-1)) }, false},
		{"crc type", func(pb *cbor.Array) { _ = pb.Set(pbCRCType, cbor.UInt(4)) }, false},
		{"destination", func(pb *cbor.Array) { _ = pb.Set(pbDestination, cbor.NewArray()) }, false},
		{"timestamp length", func(pb *cbor.Array) {
			_ = pb.Set(pbTimestamp, cbor.NewArray(cbor.UInt(1), cbor.UInt(2), cbor.UInt(3)))
		}, false},
		{"timestamp content", func(pb *cbor.Array) {
			_ = pb.Set(pbTimestamp, cbor.NewArray(cbor.UInt(1), cbor.Text("2")))
		}, false},
		{"lifetime", func(pb *cbor.Array) { _ = pb.Set(pbLifetime, cbor.Null{}) }, false},
		{"too short", func(pb *cbor.Array) { _, _ = pb.PopBack() }, false},
		{"fragment without fields", func(pb *cbor.Array) { _ = pb.Set(pbFlags, cbor.UInt(IsFragment)) }, false},
		{"fragment", func(pb *cbor.Array) {
			_ = pb.Set(pbFlags, cbor.UInt(IsFragment))
			pb.Push(cbor.UInt(0))
			pb.Push(cbor.UInt(10))
		}, true},
		{"fragment offset", func(pb *cbor.Array) {
			_ = pb.Set(pbFlags, cbor.UInt(IsFragment))
			pb.Push(cbor.Bytes{})
			pb.Push(cbor.UInt(10))
		}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pb := valid()
			test.mutate(pb)

			if err := checkPrimaryBlock(pb, nil); (err == nil) != test.valid {
				t.Fatalf("expected valid %t, got %v", test.valid, err)
			}
		})
	}
}

func TestCheckPrimaryBlockCRC(t *testing.T) {
	for _, crcType := range []CRCType{CRC16, CRC32} {
		t.Run(crcType.String(), func(t *testing.T) {
			pb := newPrimaryBlock(PrimaryBlockParams{
				CRCType:     crcType,
				Destination: "dtn://dest/",
				Source:      "dtn://src/",
			})

			value, err := blockCRC(pb, crcType)
			if err != nil {
				t.Fatal(err)
			}
			_ = pb.Set(pb.Len()-1, cbor.Bytes(value))

			if err := checkPrimaryBlock(pb, nil); err != nil {
				t.Fatal(err)
			}

			raw, err := cbor.Marshal(pb)
			if err != nil {
				t.Fatal(err)
			}
			if err := checkPrimaryBlock(pb, raw); err != nil {
				t.Fatal(err)
			}

			_ = pb.Set(pbLifetime, cbor.UInt(1))
			if err := checkPrimaryBlock(pb, nil); err == nil {
				t.Fatal("modified primary block passed the CRC check")
			}
		})
	}
}
