// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// maxHeadGrowth is the maximum growth of a byte string's head compared to an
// empty one.
const maxHeadGrowth = 8

// fragmentSkeleton creates a fragment without payload. Only the first fragment
// carries all extension blocks, the others only those to be replicated.
func (b *Bundle) fragmentSkeleton(first bool) *Bundle {
	frag := &Bundle{blocks: cbor.NewArray(cbor.Copy(b.primary()))}

	for _, cb := range b.Blocks() {
		if cb.Code() == ExtBlockTypePayloadBlock {
			continue
		}
		if first || cb.Flags().Has(ReplicateBlock) {
			frag.blocks.Push(cbor.Copy(cb.block))
		}
	}
	return frag
}

// Fragment this Bundle into multiple Bundles, with each encoded fragment
// limited to mtu bytes. If the Bundle already fits, it is returned itself.
//
// All fragments share the source and creation time. Their sequence numbers
// ascend in the order of their offsets, starting at the original sequence
// number.
func (b *Bundle) Fragment(mtu int) ([]*Bundle, error) {
	if b.Flags().Has(MustNotFragmented) {
		return nil, fmt.Errorf("bundle control flags forbids bundle fragmentation")
	}
	if err := b.prepare(); err != nil {
		return nil, err
	}

	if size, err := b.EncodingSize(); err != nil {
		return nil, err
	} else if size <= mtu {
		return []*Bundle{b}, nil
	}

	pcb, err := b.PayloadBlock()
	if err != nil {
		return nil, err
	}
	payload := pcb.Data()

	offset, total := uint64(0), uint64(len(payload))
	if b.IsFragment() {
		offset, total = b.FragmentOffset(), b.TotalDataLength()
	}
	creationTime, sequence := b.Timestamp()

	var frags []*Bundle
	for i, k := 0, uint64(0); i < len(payload); k++ {
		frag := b.fragmentSkeleton(k == 0)
		if err := frag.SetFragment(offset+uint64(i), total); err != nil {
			return nil, err
		}
		if err := frag.SetTimestamp(creationTime, sequence+k); err != nil {
			return nil, err
		}
		if err := frag.AddPayload(nil, pcb.Flags(), pcb.CRCType()); err != nil {
			return nil, err
		}

		overhead, err := frag.EncodingSize()
		if err != nil {
			return nil, err
		}

		room := mtu - overhead - maxHeadGrowth
		if room <= 0 {
			return nil, fmt.Errorf("bundle overhead of fragment %d exceeds MTU %d", k, mtu)
		}

		end := i + room
		if end > len(payload) {
			end = len(payload)
		}

		fpcb, _ := frag.PayloadBlock()
		fpcb.SetData(append([]byte(nil), payload[i:end]...))
		if err := frag.prepare(); err != nil {
			return nil, err
		}

		frags = append(frags, frag)
		i = end
	}

	return frags, nil
}
