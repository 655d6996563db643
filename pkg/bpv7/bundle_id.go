// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"strings"
)

// BundleID identifies a bundle by its source node and creation timestamp. A
// fragment is further identified by its offset and the total data length.
type BundleID struct {
	Source         string
	CreationTime   uint64
	SequenceNumber uint64

	IsFragment      bool
	FragmentOffset  uint64
	TotalDataLength uint64
}

func (bid BundleID) String() string {
	var bldr strings.Builder

	_, _ = fmt.Fprintf(&bldr, "%s-%d-%d", bid.Source, bid.CreationTime, bid.SequenceNumber)
	if bid.IsFragment {
		_, _ = fmt.Fprintf(&bldr, "-%d-%d", bid.FragmentOffset, bid.TotalDataLength)
	}

	return bldr.String()
}

// Scrub creates a cleaned BundleID without fragmentation.
func (bid BundleID) Scrub() BundleID {
	return BundleID{
		Source:         bid.Source,
		CreationTime:   bid.CreationTime,
		SequenceNumber: bid.SequenceNumber,
	}
}
