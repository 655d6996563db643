// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package reassembly

import (
	"bytes"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
)

type delivery struct {
	payload     []byte
	source      string
	destination string
}

// collector records all deliveries.
type collector struct {
	mutex      sync.Mutex
	deliveries []delivery
}

func (c *collector) deliver(payload []byte, source, destination string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.deliveries = append(c.deliveries, delivery{payload, source, destination})
}

func (c *collector) get() []delivery {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]delivery(nil), c.deliveries...)
}

func newTestBuffer(t *testing.T, conf Config) (*Buffer, *collector) {
	c := &collector{}

	b, err := New(conf, c.deliver)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)

	return b, c
}

func newFragment(t *testing.T, source string, creationTime, sequence, offset, total uint64, payload string) *bpv7.Bundle {
	b := bpv7.New()
	if err := b.AddPrimaryBlock(bpv7.PrimaryBlockParams{
		Flags:           bpv7.IsFragment,
		Destination:     "dtn://dest/",
		Source:          source,
		CreationTime:    creationTime,
		SequenceNumber:  sequence,
		Lifetime:        60000,
		FragmentOffset:  offset,
		TotalDataLength: total,
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddPayload([]byte(payload), 0, bpv7.CRCNo); err != nil {
		t.Fatal(err)
	}
	return b
}

func testFragments(t *testing.T) []*bpv7.Bundle {
	return []*bpv7.Bundle{
		newFragment(t, "dtn://src/", 1, 0, 0, 12, "test"),
		newFragment(t, "dtn://src/", 1, 1, 4, 12, "1234"),
		newFragment(t, "dtn://src/", 1, 2, 8, 12, "5678"),
	}
}

func TestBufferUnfragmented(t *testing.T) {
	b, c := newTestBuffer(t, Config{})

	bndl := bpv7.New()
	if err := bndl.AddPrimaryBlock(bpv7.PrimaryBlockParams{
		Destination: "dtn://dest/",
		Source:      "dtn://src/",
		Lifetime:    60000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := bndl.AddPayload([]byte("test"), 0, bpv7.CRCNo); err != nil {
		t.Fatal(err)
	}

	if err := b.Push(bndl); err != nil {
		t.Fatal(err)
	}

	expected := []delivery{{[]byte("test"), "dtn://src/", "dtn://dest/"}}
	if ds := c.get(); len(ds) != 1 || !bytes.Equal(ds[0].payload, expected[0].payload) ||
		ds[0].source != expected[0].source || ds[0].destination != expected[0].destination {
		t.Fatalf("expected %v, got %v", expected, ds)
	}
	if b.Len() != 0 || b.HistoryLen() != 0 {
		t.Fatalf("unfragmented bundle was buffered: %d, %d", b.Len(), b.HistoryLen())
	}
}

func TestBufferPermutations(t *testing.T) {
	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2},
		{1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	for _, perm := range permutations {
		t.Run("", func(t *testing.T) {
			b, c := newTestBuffer(t, Config{})
			frags := testFragments(t)

			for i, idx := range perm {
				if err := b.Push(frags[idx]); err != nil {
					t.Fatal(err)
				}

				if ds := c.get(); i < len(perm)-1 && len(ds) != 0 {
					t.Fatalf("%v: delivered after %d fragments", perm, i+1)
				}
			}

			ds := c.get()
			if len(ds) != 1 {
				t.Fatalf("%v: %d deliveries", perm, len(ds))
			}
			if string(ds[0].payload) != "test12345678" {
				t.Fatalf("%v: payload is %q", perm, ds[0].payload)
			}
			if ds[0].source != "dtn://src/" || ds[0].destination != "dtn://dest/" {
				t.Fatalf("%v: delivered from %s to %s", perm, ds[0].source, ds[0].destination)
			}

			if b.Len() != 0 {
				t.Fatalf("%v: completed payload is still buffered", perm)
			}
			if b.HistoryLen() != 3 {
				t.Fatalf("%v: history has %d entries", perm, b.HistoryLen())
			}
		})
	}
}

func TestBufferDuplicates(t *testing.T) {
	b, c := newTestBuffer(t, Config{})
	frags := testFragments(t)

	for _, frag := range []*bpv7.Bundle{
		frags[0],
		newFragment(t, "dtn://src/", 1, 0, 0, 12, "TEST"),
		frags[1],
		frags[1],
		frags[2],
		frags[2],
	} {
		if err := b.Push(frag); err != nil {
			t.Fatal(err)
		}
	}

	ds := c.get()
	if len(ds) != 1 || string(ds[0].payload) != "test12345678" {
		t.Fatalf("unexpected deliveries %v", ds)
	}

	// The history outlives the reassembled payload.
	if err := b.Push(frags[0]); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 || len(c.get()) != 1 {
		t.Fatal("known fragment was buffered again")
	}
}

func TestBufferSingleFragment(t *testing.T) {
	b, c := newTestBuffer(t, Config{})

	if err := b.Push(newFragment(t, "dtn://src/", 1, 0, 0, 4, "test")); err != nil {
		t.Fatal(err)
	}

	if ds := c.get(); len(ds) != 1 || string(ds[0].payload) != "test" {
		t.Fatalf("unexpected deliveries %v", ds)
	}
}

func TestBufferSeparatesKeys(t *testing.T) {
	b, c := newTestBuffer(t, Config{})

	pushes := []*bpv7.Bundle{
		newFragment(t, "dtn://a/", 1, 0, 0, 4, "aa"),
		newFragment(t, "dtn://b/", 1, 0, 0, 4, "bb"),
		newFragment(t, "dtn://a/", 2, 0, 0, 4, "cc"),
		newFragment(t, "dtn://a/", 1, 1, 2, 4, "AA"),
	}
	for _, frag := range pushes {
		if err := b.Push(frag); err != nil {
			t.Fatal(err)
		}
	}

	ds := c.get()
	if len(ds) != 1 || string(ds[0].payload) != "aaAA" || ds[0].source != "dtn://a/" {
		t.Fatalf("unexpected deliveries %v", ds)
	}
	if b.Len() != 2 {
		t.Fatalf("buffer has %d entries", b.Len())
	}
}

func TestBufferFragmentedBundle(t *testing.T) {
	payload := make([]byte, 8192)
	rand.New(rand.NewSource(42)).Read(payload)

	bndl := bpv7.New()
	if err := bndl.AddPrimaryBlock(bpv7.PrimaryBlockParams{
		CRCType:        bpv7.CRC32,
		Destination:    "dtn://dest/",
		Source:         "dtn://src/",
		CreationTime:   uint64(bpv7.DtnTimeNow()),
		SequenceNumber: 5,
		Lifetime:       60000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := bndl.AddPayload(payload, 0, bpv7.CRC32); err != nil {
		t.Fatal(err)
	}

	frags, err := bndl.Fragment(512)
	if err != nil {
		t.Fatal(err)
	}
	rand.New(rand.NewSource(23)).Shuffle(len(frags), func(i, j int) {
		frags[i], frags[j] = frags[j], frags[i]
	})

	b, c := newTestBuffer(t, Config{})
	for _, frag := range frags {
		data, err := frag.Marshal()
		if err != nil {
			t.Fatal(err)
		}

		received := bpv7.New()
		if err := received.UnmarshalCbor(bytes.NewReader(data)); err != nil {
			t.Fatal(err)
		}
		if err := b.Push(received); err != nil {
			t.Fatal(err)
		}
	}

	if ds := c.get(); len(ds) != 1 || !bytes.Equal(ds[0].payload, payload) {
		t.Fatalf("%d fragments resulted in %d deliveries", len(frags), len(ds))
	}
}

func TestBufferCleanup(t *testing.T) {
	b, c := newTestBuffer(t, Config{
		MaxBufferTime: time.Hour,
		HistoryTTL:    2 * time.Hour,
	})

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	frags := testFragments(t)
	if err := b.Push(frags[0]); err != nil {
		t.Fatal(err)
	}

	now = now.Add(30 * time.Minute)
	b.cleanup()
	if b.Len() != 1 || b.HistoryLen() != 1 {
		t.Fatalf("entries evicted too early: %d, %d", b.Len(), b.HistoryLen())
	}

	now = now.Add(time.Hour)
	b.cleanup()
	if b.Len() != 0 || b.HistoryLen() != 1 {
		t.Fatalf("unexpected entries after buffer eviction: %d, %d", b.Len(), b.HistoryLen())
	}

	// The first fragment is known but its data is lost.
	for _, frag := range frags {
		if err := b.Push(frag); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.get()) != 0 {
		t.Fatal("payload without its first fragment was delivered")
	}

	now = now.Add(3 * time.Hour)
	b.cleanup()
	if b.Len() != 0 || b.HistoryLen() != 0 {
		t.Fatalf("unexpected entries after history eviction: %d, %d", b.Len(), b.HistoryLen())
	}

	for _, frag := range frags {
		if err := b.Push(frag); err != nil {
			t.Fatal(err)
		}
	}
	if ds := c.get(); len(ds) != 1 || string(ds[0].payload) != "test12345678" {
		t.Fatalf("unexpected deliveries %v", ds)
	}
}

func TestBufferCleanupBusy(t *testing.T) {
	b, _ := newTestBuffer(t, Config{MaxBufferTime: time.Minute})

	now := time.Now()
	b.now = func() time.Time { return now }

	if err := b.Push(testFragments(t)[0]); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)

	if !b.dataSem.TryAcquire(1) {
		t.Fatal("data lock is taken")
	}

	done := make(chan struct{})
	go func() {
		b.cleanup()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup blocked on a busy lock")
	}
	b.dataSem.Release(1)

	if b.Len() != 1 {
		t.Fatal("cleanup evicted while the lock was busy")
	}

	b.cleanup()
	if b.Len() != 0 {
		t.Fatal("postponed cleanup did not evict")
	}
}

func TestBufferLockTimeout(t *testing.T) {
	b, c := newTestBuffer(t, Config{LockTimeout: 10 * time.Millisecond})

	if !b.historySem.TryAcquire(1) {
		t.Fatal("history lock is taken")
	}

	frag := newFragment(t, "dtn://src/", 1, 0, 0, 4, "test")
	if err := b.Push(frag); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if err := b.Clear(); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	b.historySem.Release(1)

	if err := b.Push(frag); err != nil {
		t.Fatal(err)
	}
	if len(c.get()) != 1 {
		t.Fatal("retried fragment was not delivered")
	}
}

func TestBufferClear(t *testing.T) {
	b, c := newTestBuffer(t, Config{})
	frags := testFragments(t)

	for _, frag := range frags[:2] {
		if err := b.Push(frag); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Clear(); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 || b.HistoryLen() != 0 {
		t.Fatalf("unexpected entries after clear: %d, %d", b.Len(), b.HistoryLen())
	}

	if err := b.Push(frags[2]); err != nil {
		t.Fatal(err)
	}
	if len(c.get()) != 0 {
		t.Fatal("cleared fragments were delivered")
	}
}

func TestBufferClose(t *testing.T) {
	b, _ := newTestBuffer(t, Config{CleanupInterval: time.Millisecond})

	time.Sleep(5 * time.Millisecond)
	b.Close()
	b.Close()

	if err := b.Push(testFragments(t)[0]); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := b.Clear(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestBufferErrors(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("buffer without DeliverFunc")
	}

	b, _ := newTestBuffer(t, Config{})
	if err := b.Push(nil); !errors.Is(err, ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
	if err := b.Push(bpv7.New()); !errors.Is(err, ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	conf := Config{HistoryTTL: time.Minute}.withDefaults()

	expected := DefaultConfig()
	expected.HistoryTTL = time.Minute

	if conf != expected {
		t.Fatalf("expected %v, got %v", expected, conf)
	}
}
