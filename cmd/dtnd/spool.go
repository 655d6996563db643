// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/opendtn/dtn7-core/pkg/agent"
	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
)

const spoolRetries = 5

var errEmptyFile = errors.New("file contains no Bundle")

// spool watches a directory for files of one or more concatenated CBOR encoded Bundles and submits them.
type spool struct {
	directory string
	decoder   *bpv7.Decoder
	submit    agent.SubmitFunc
	remove    bool

	watcher    *fsnotify.Watcher
	knownFiles sync.Map

	wg      sync.WaitGroup
	stopSyn chan struct{}
	stopAck chan struct{}
}

func newSpool(directory string, decoder *bpv7.Decoder, submit agent.SubmitFunc, remove bool) (s *spool, err error) {
	if err = os.MkdirAll(directory, 0700); err != nil {
		return
	}

	s = &spool{
		directory: directory,
		decoder:   decoder,
		submit:    submit,
		remove:    remove,

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	if s.watcher, err = fsnotify.NewWatcher(); err != nil {
		return
	}
	if err = s.watcher.Add(directory); err != nil {
		_ = s.watcher.Close()
		return
	}

	go s.handler()

	return
}

// Close stops watching and waits for files still being processed.
func (s *spool) Close() {
	close(s.stopSyn)
	<-s.stopAck
	s.wg.Wait()
}

func (s *spool) handler() {
	defer close(s.stopAck)
	defer func() { _ = s.watcher.Close() }()

	if entries, err := os.ReadDir(s.directory); err != nil {
		log.WithError(err).WithField("directory", s.directory).Warn("Listing spool directory errored")
	} else {
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				s.startFile(filepath.Join(s.directory, entry.Name()))
			}
		}
	}

	for {
		select {
		case <-s.stopSyn:
			return

		case e, ok := <-s.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			switch {
			case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				s.knownFiles.Delete(e.Name)

			case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
				s.startFile(e.Name)

			default:
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Warn("fsnotify errored")
		}
	}
}

// startFile processes a file, unless it is already known.
func (s *spool) startFile(name string) {
	if _, known := s.knownFiles.LoadOrStore(name, struct{}{}); known {
		log.WithField("file", name).Debug("Skipping file; already known")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processFile(name)
	}()
}

// readFile decodes all Bundles of a file.
func (s *spool) readFile(name string) (bundles []*bpv7.Bundle, err error) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	defer f.Close()

	stream := bpv7.NewReader(f, s.decoder)
	for {
		b, nextErr := stream.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		} else if nextErr != nil {
			err = nextErr
			return
		}

		bundles = append(bundles, b)
	}

	if len(bundles) == 0 {
		err = errEmptyFile
	}
	return
}

func (s *spool) processFile(name string) {
	logger := log.WithField("file", name)

	for i := 0; i < spoolRetries; i++ {
		bundles, err := s.readFile(name)
		if errors.Is(err, cbor.ErrMalformed) {
			logger.WithError(err).Warn("File contains no valid Bundles, giving up")
			return
		} else if err != nil {
			logger.WithError(err).Debug("Reading file errored, retrying..")

			select {
			case <-s.stopSyn:
				return
			case <-time.After(time.Duration(1<<i) * 100 * time.Millisecond):
			}
			continue
		}

		if err := s.submitAll(bundles); err != nil {
			logger.WithError(err).Warn("Submitting Bundles errored")
			s.knownFiles.Delete(name)
			return
		}

		logger.WithField("bundles", len(bundles)).Info("Submitted Bundles from spool file")

		if s.remove {
			if err := os.Remove(name); err != nil {
				logger.WithError(err).Warn("Removing spool file errored")
			}
		}
		return
	}

	logger.Error("Failed to process file, giving up.")
	s.knownFiles.Delete(name)
}

func (s *spool) submitAll(bundles []*bpv7.Bundle) error {
	for _, b := range bundles {
		if err := s.submit(b); err != nil {
			return fmt.Errorf("bundle %v: %w", b.ID(), err)
		}
	}
	return nil
}
