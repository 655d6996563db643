// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cron

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCronExecutes(t *testing.T) {
	cron := New(10 * time.Millisecond)
	defer cron.Stop()

	var counter atomic.Int32
	if err := cron.Register("count", func() { counter.Add(1) }, 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)

	if c := counter.Load(); c < 3 {
		t.Fatalf("job was executed %d times", c)
	}

	cron.Unregister("count")
	time.Sleep(50 * time.Millisecond)
	before := counter.Load()
	time.Sleep(100 * time.Millisecond)

	if after := counter.Load(); after != before {
		t.Fatalf("unregistered job was executed, %d != %d", after, before)
	}
}

func TestCronNoOverlap(t *testing.T) {
	cron := New(10 * time.Millisecond)
	defer cron.Stop()

	var running, maxRunning atomic.Int32
	task := func() {
		r := running.Add(1)
		for {
			m := maxRunning.Load()
			if r <= m || maxRunning.CompareAndSwap(m, r) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		running.Add(-1)
	}

	if err := cron.Register("slow", task, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(350 * time.Millisecond)

	if m := maxRunning.Load(); m != 1 {
		t.Fatalf("job ran %d times concurrently", m)
	}
}

func TestCronRegisterErrors(t *testing.T) {
	cron := New(time.Second)
	defer cron.Stop()

	if err := cron.Register("job", func() {}, time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := cron.Register("job", func() {}, time.Minute); !errors.Is(err, ErrJobExists) {
		t.Fatalf("expected ErrJobExists, got %v", err)
	}

	if err := cron.Register("fast", func() {}, time.Millisecond); !errors.Is(err, ErrInterval) {
		t.Fatalf("expected ErrInterval, got %v", err)
	}

	if jobs := cron.Jobs(); len(jobs) != 1 || jobs[0] != "job" {
		t.Fatalf("unexpected jobs %v", jobs)
	}
}

func TestCronStopTwice(t *testing.T) {
	cron := New(0)
	cron.Stop()
	cron.Stop()
}
