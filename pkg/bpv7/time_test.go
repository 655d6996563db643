// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"strings"
	"testing"
	"time"
)

func TestDtnTime(t *testing.T) {
	var epoch DtnTime = 0
	var ttime = epoch.Time()

	if !strings.HasPrefix(ttime.String(), "2000-01-01 00:00:00") {
		t.Fatalf("Time does not represent 2000-01-01, instead: %v", ttime.String())
	}

	if _, offset := ttime.Zone(); offset != 0 {
		t.Fatalf("Time is not located in UTC, instead: %d", offset)
	}

	if epoch2 := DtnTimeFromTime(ttime); epoch != epoch2 {
		t.Fatalf("Converting time.Time back to DtnTime diverges: %d", epoch2)
	}

	ttime = ttime.Add(48*time.Hour + 30*time.Minute)
	if expected := epoch + DtnTime((48*60+30)*60*1000); expected != DtnTimeFromTime(ttime) {
		t.Fatalf("Adding duration erred: expected %v; got %v", expected, DtnTimeFromTime(ttime))
	}

	if dt := DtnTimeFromTime(time.Unix(0, 0)); dt != DtnTimeEpoch {
		t.Fatalf("time before 2000 resulted in %v", dt)
	}
}

func TestExpirationTime(t *testing.T) {
	b := newTestBundle(t, CRCNo, []byte("expiration"))

	creationTime := DtnTimeFromTime(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	if err := b.SetTimestamp(uint64(creationTime), 0); err != nil {
		t.Fatal(err)
	}
	if err := b.SetLifetime(uint64(time.Hour / time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	if exp := b.ExpirationTime(); !exp.Equal(time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("bundle expires at %v", exp)
	}

	if err := b.SetTimestamp(uint64(DtnTimeEpoch), 0); err != nil {
		t.Fatal(err)
	}
	if exp := b.ExpirationTime(); exp.Before(time.Now().Add(59 * time.Minute)) {
		t.Fatalf("bundle without clock expires at %v", exp)
	}
}
