// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package reassembly buffers bundle fragments until their original payload is
// complete and delivers each payload exactly once.
//
// Fragments are grouped by their source and creation time. Within a group,
// they are ordered by their timestamp's sequence number. A history of all seen
// fragments suppresses duplicates. Both the buffered fragments and the history
// expire after a configurable time.
package reassembly
