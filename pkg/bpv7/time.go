// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import "time"

// DtnTime is an integer representation of milliseconds since the start of the year 2000 (UTC).
type DtnTime uint64

const (
	milliseconds1970To2k = 946684800000

	// DtnTimeEpoch represents the zero timestamp, used by nodes without an accurate clock.
	DtnTimeEpoch DtnTime = 0
)

// Time returns a UTC-based time.Time for this DtnTime.
func (t DtnTime) Time() time.Time {
	return time.UnixMilli(int64(t) + milliseconds1970To2k).UTC()
}

func (t DtnTime) String() string {
	return t.Time().Format("2006-01-02 15:04:05.000")
}

// DtnTimeFromTime returns the DtnTime for the time.Time. Times before 2000
// result in DtnTimeEpoch.
func DtnTimeFromTime(t time.Time) DtnTime {
	ms := t.UnixMilli() - milliseconds1970To2k
	if ms < 0 {
		return DtnTimeEpoch
	}
	return DtnTime(ms)
}

// DtnTimeNow returns the current (UTC) time as DtnTime.
func DtnTimeNow() DtnTime {
	return DtnTimeFromTime(time.Now())
}

// ExpirationTime is the creation time plus the lifetime. For bundles without
// an accurate creation time, the lifetime is counted from now.
func (b *Bundle) ExpirationTime() time.Time {
	creationTime, _ := b.Timestamp()

	start := DtnTime(creationTime).Time()
	if DtnTime(creationTime) == DtnTimeEpoch {
		start = time.Now()
	}
	return start.Add(time.Duration(b.Lifetime()) * time.Millisecond)
}
