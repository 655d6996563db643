// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bpv7 encodes, decodes, and validates Bundles of the Bundle Protocol
// Version 7 on top of the cbor package.
//
// A Bundle is kept as its CBOR array of blocks, so blocks unknown to this
// package are preserved. New Bundles are created empty and populated block by
// block.
//
//	b := bpv7.New()
//	_ = b.AddPrimaryBlock(bpv7.PrimaryBlockParams{
//	  CRCType:      bpv7.CRC32,
//	  Destination:  "dtn://dest/",
//	  Source:       "dtn://src/",
//	  CreationTime: 1,
//	  Lifetime:     3600000,
//	})
//	_ = b.AddHopCount(bpv7.HopCount{Limit: 64}, bpv7.CRCNo)
//	_ = b.AddPayload([]byte("hello world"), 0, bpv7.CRC32)
//	data, err := b.Marshal()
//
// Decoding is incremental, like the cbor package's. Malformed Bundles, CRC
// mismatches included, result in cbor.NoMatch. An incomplete primary block is
// checked field by field, so that malformed input is rejected early.
//
//	m, b, n := bpv7.Decode(data)
package bpv7
