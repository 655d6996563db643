// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cron executes named jobs in fixed intervals, e.g., the removal of expired payloads.
package cron

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrJobExists is returned when registering a job under an already used name.
	ErrJobExists = errors.New("job already registered")

	// ErrInterval is returned for an interval shorter than the Cron's resolution.
	ErrInterval = errors.New("interval shorter than resolution")
)

type job struct {
	task      func()
	interval  time.Duration
	nextEvent time.Time
	running   atomic.Bool
}

// Cron manages different jobs which require interval based execution.
//
// A job is never executed concurrently with itself. If its previous execution is still running, the event is
// skipped.
type Cron struct {
	resolution time.Duration

	jobs  map[string]*job
	mutex sync.Mutex

	stopOnce sync.Once
	stopSyn  chan struct{}
	stopAck  chan struct{}
}

// New creates and starts an empty Cron, checking its jobs every resolution.
func New(resolution time.Duration) *Cron {
	if resolution <= 0 {
		resolution = time.Second
	}

	cron := &Cron{
		resolution: resolution,
		jobs:       make(map[string]*job),
		stopSyn:    make(chan struct{}),
		stopAck:    make(chan struct{}),
	}

	go cron.loop()

	return cron
}

func (cron *Cron) loop() {
	ticker := time.NewTicker(cron.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-cron.stopSyn:
			close(cron.stopAck)
			return

		case t := <-ticker.C:
			cron.fire(t)
		}
	}
}

func (cron *Cron) fire(t time.Time) {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	for name, j := range cron.jobs {
		if j.nextEvent.After(t) {
			continue
		}

		// Skip missed events instead of catching up.
		for !j.nextEvent.After(t) {
			j.nextEvent = j.nextEvent.Add(j.interval)
		}

		if !j.running.CompareAndSwap(false, true) {
			log.WithField("job", name).Debug("Cron skipped still running job")
			continue
		}

		go func(j *job) {
			defer j.running.Store(false)
			j.task()
		}(j)

		log.WithFields(log.Fields{
			"job":        name,
			"interval":   j.interval,
			"next_event": j.nextEvent,
		}).Debug("Cron executed job")
	}
}

// Stop this Cron. Running jobs are not awaited.
func (cron *Cron) Stop() {
	cron.stopOnce.Do(func() {
		close(cron.stopSyn)
		<-cron.stopAck
	})
}

// Register a new task by its name, function and interval. The interval must be at least the Cron's resolution.
// The function will be executed in a new Goroutine.
func (cron *Cron) Register(name string, task func(), interval time.Duration) error {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	if _, exists := cron.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	if interval < cron.resolution {
		return fmt.Errorf("%w: %v < %v", ErrInterval, interval, cron.resolution)
	}

	cron.jobs[name] = &job{
		task:      task,
		interval:  interval,
		nextEvent: time.Now().Add(interval),
	}

	return nil
}

// Unregister a task by its name.
func (cron *Cron) Unregister(name string) {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	delete(cron.jobs, name)
}

// Jobs returns the names of all registered jobs.
func (cron *Cron) Jobs() (names []string) {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	for name := range cron.jobs {
		names = append(names, name)
	}
	return
}
