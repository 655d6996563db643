// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package reassembly

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
)

var (
	// ErrLockTimeout is returned if the Buffer was busy for longer than the
	// configured LockTimeout. The operation might be retried.
	ErrLockTimeout = errors.New("reassembly buffer lock timed out")

	// ErrNoPayload is returned for a bundle without a payload block.
	ErrNoPayload = errors.New("bundle without payload")

	// ErrClosed is returned after the Buffer was closed.
	ErrClosed = errors.New("reassembly buffer is closed")
)

// DeliverFunc receives each complete payload together with its bundle's
// source and destination.
type DeliverFunc func(payload []byte, source, destination string)

// key identifies all fragments of one original bundle.
type key struct {
	source       string
	creationTime uint64
}

// historyKey identifies a single fragment.
type historyKey struct {
	key
	sequence uint64
}

type fragment struct {
	sequence uint64
	payload  []byte
}

type entry struct {
	created     time.Time
	destination string
	total       uint64
	size        uint64
	fragments   []fragment
}

// insert adds a fragment in front of the first one with an equal or higher
// sequence number.
func (e *entry) insert(frag fragment) {
	pos := len(e.fragments)
	for i, f := range e.fragments {
		if f.sequence >= frag.sequence {
			pos = i
			break
		}
	}

	e.fragments = append(e.fragments, fragment{})
	copy(e.fragments[pos+1:], e.fragments[pos:])
	e.fragments[pos] = frag
	e.size += uint64(len(frag.payload))
}

func (e *entry) complete() bool {
	return e.size == e.total
}

func (e *entry) payload() []byte {
	payload := make([]byte, 0, e.size)
	for _, f := range e.fragments {
		payload = append(payload, f.payload...)
	}
	return payload
}

// Buffer reassembles fragmented bundles. Unfragmented bundles are delivered
// immediately. A Buffer is safe for concurrent use and must be closed to stop
// its cleanup.
type Buffer struct {
	conf    Config
	deliver DeliverFunc

	dataSem *semaphore.Weighted
	data    map[key]*entry

	historySem *semaphore.Weighted
	history    map[historyKey]time.Time

	now func() time.Time

	stopSyn   chan struct{}
	stopAck   chan struct{}
	closeOnce sync.Once
}

// New creates and starts a Buffer which passes complete payloads to deliver.
func New(conf Config, deliver DeliverFunc) (*Buffer, error) {
	if deliver == nil {
		return nil, fmt.Errorf("reassembly buffer requires a DeliverFunc")
	}

	b := &Buffer{
		conf:    conf.withDefaults(),
		deliver: deliver,

		dataSem: semaphore.NewWeighted(1),
		data:    make(map[key]*entry),

		historySem: semaphore.NewWeighted(1),
		history:    make(map[historyKey]time.Time),

		now: time.Now,

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	go b.loop()

	return b, nil
}

func (b *Buffer) loop() {
	ticker := time.NewTicker(b.conf.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopSyn:
			close(b.stopAck)
			return

		case <-ticker.C:
			b.cleanup()
		}
	}
}

// Close stops the cleanup. Afterwards, Push and Clear return ErrClosed.
func (b *Buffer) Close() {
	b.closeOnce.Do(func() {
		close(b.stopSyn)
		<-b.stopAck
	})
}

func (b *Buffer) isClosed() bool {
	select {
	case <-b.stopSyn:
		return true
	default:
		return false
	}
}

// lock acquires sem within the LockTimeout.
func (b *Buffer) lock(sem *semaphore.Weighted) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.conf.LockTimeout)
	defer cancel()

	if err := sem.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}

// lockBoth acquires the data lock followed by the history lock.
func (b *Buffer) lockBoth() error {
	if err := b.lock(b.dataSem); err != nil {
		return err
	}
	if err := b.lock(b.historySem); err != nil {
		b.dataSem.Release(1)
		return err
	}
	return nil
}

func (b *Buffer) unlockBoth() {
	b.historySem.Release(1)
	b.dataSem.Release(1)
}

// Push a received bundle. Unfragmented bundles are delivered directly. A
// fragment is buffered until its payload is complete, known fragments are
// dropped. The DeliverFunc is called by the pushing goroutine.
//
// The Buffer takes ownership of the bundle.
func (b *Buffer) Push(bndl *bpv7.Bundle) error {
	if b.isClosed() {
		return ErrClosed
	}
	if bndl == nil {
		return fmt.Errorf("%w: no bundle", ErrNoPayload)
	}

	payload, err := bndl.Payload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoPayload, err)
	}

	if !bndl.IsFragment() {
		log.WithField("bundle", bndl.ID()).Debug("Delivering unfragmented bundle")
		b.deliver(payload, bndl.Source(), bndl.Destination())
		return nil
	}

	creationTime, sequence := bndl.Timestamp()
	k := key{source: bndl.Source(), creationTime: creationTime}
	hk := historyKey{key: k, sequence: sequence}

	logger := log.WithFields(log.Fields{
		"bundle":   bndl.ID(),
		"sequence": sequence,
	})

	if err := b.lockBoth(); err != nil {
		logger.WithError(err).Warn("Failed to buffer fragment")
		return err
	}

	now := b.now()
	if _, known := b.history[hk]; known {
		b.unlockBoth()
		logger.Debug("Dropping known fragment")
		return nil
	}
	b.history[hk] = now

	e, exists := b.data[k]
	if !exists {
		e = &entry{
			created:     now,
			destination: bndl.Destination(),
			total:       bndl.TotalDataLength(),
		}
		b.data[k] = e
	}
	e.insert(fragment{sequence: sequence, payload: payload})

	var (
		complete    []byte
		size        = e.size
		destination = e.destination
	)
	if e.complete() {
		complete = e.payload()
		delete(b.data, k)
	} else if e.size > e.total {
		logger.WithFields(log.Fields{
			"size":  e.size,
			"total": e.total,
		}).Warn("Fragments exceed total data length")
	}
	b.unlockBoth()

	if complete == nil {
		logger.WithField("size", size).Debug("Buffered fragment")
		return nil
	}

	logger.WithField("size", len(complete)).Info("Delivering reassembled payload")
	b.deliver(complete, k.source, destination)
	return nil
}

// Clear drops all buffered fragments and the history.
func (b *Buffer) Clear() error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.lockBoth(); err != nil {
		return err
	}
	defer b.unlockBoth()

	b.data = make(map[key]*entry)
	b.history = make(map[historyKey]time.Time)
	return nil
}

// cleanup evicts expired entries. A busy lock is skipped until the next run.
func (b *Buffer) cleanup() {
	now := b.now()

	if b.dataSem.TryAcquire(1) {
		evicted := 0
		for k, e := range b.data {
			if now.Sub(e.created) > b.conf.MaxBufferTime {
				delete(b.data, k)
				evicted++
			}
		}
		b.dataSem.Release(1)

		if evicted > 0 {
			log.WithField("entries", evicted).Info("Dropped incomplete fragmented payloads")
		}
	} else {
		log.Debug("Reassembly buffer is busy, postponing cleanup")
	}

	if b.historySem.TryAcquire(1) {
		for hk, seen := range b.history {
			if now.Sub(seen) > b.conf.HistoryTTL {
				delete(b.history, hk)
			}
		}
		b.historySem.Release(1)
	} else {
		log.Debug("Reassembly history is busy, postponing cleanup")
	}
}

// Len is the number of incomplete payloads.
func (b *Buffer) Len() int {
	_ = b.dataSem.Acquire(context.Background(), 1)
	defer b.dataSem.Release(1)

	return len(b.data)
}

// HistoryLen is the number of remembered fragments.
func (b *Buffer) HistoryLen() int {
	_ = b.historySem.Acquire(context.Background(), 1)
	defer b.historySem.Release(1)

	return len(b.history)
}
