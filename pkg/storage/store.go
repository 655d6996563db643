// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"os"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"
)

const (
	dirBadger  string = "db"
	dirPayload string = "payload"

	// DefaultTTL of a stored payload.
	DefaultTTL = 24 * time.Hour
)

// Store implements a storage for delivered payloads together with meta data.
type Store struct {
	bh  *badgerhold.Store
	ttl time.Duration

	badgerDir  string
	payloadDir string
}

// NewStore creates a new Store or opens an existing Store from the given path.
// Payloads expire after ttl, a zero ttl selects DefaultTTL.
func NewStore(dir string, ttl time.Duration) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)
	payloadDir := path.Join(dir, dirPayload)

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}
	if dirErr := os.MkdirAll(payloadDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh:  bh,
			ttl: ttl,

			badgerDir:  badgerDir,
			payloadDir: payloadDir,
		}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Push a delivered payload to the Store. An already stored payload with the
// same endpoints is not stored twice.
func (s *Store) Push(payload []byte, source, destination string) (PayloadItem, error) {
	pi := newPayloadItem(payload, source, destination, s.payloadDir, s.ttl)
	logger := log.WithFields(log.Fields{
		"payload":     pi.Id,
		"source":      source,
		"destination": destination,
	})

	if known, err := s.QueryId(pi.Id); err == nil {
		logger.Debug("Payload is already stored, ignoring push")
		return known, nil
	}

	if err := pi.storePayload(payload); err != nil {
		return pi, err
	}

	logger.WithField("size", pi.Size).Info("Storing delivered payload")
	return pi, s.bh.Insert(pi.Id, pi)
}

// Deliver pushes a payload and logs errors, fitting a reassembly.DeliverFunc.
func (s *Store) Deliver(payload []byte, source, destination string) {
	if _, err := s.Push(payload, source, destination); err != nil {
		log.WithFields(log.Fields{
			"source":      source,
			"destination": destination,
			"error":       err,
		}).Warn("Failed to store delivered payload")
	}
}

// Delete a PayloadItem together with its payload file.
func (s *Store) Delete(id string) error {
	pi, err := s.QueryId(id)
	if err != nil {
		return nil
	}

	log.WithField("payload", id).Info("Store deletes PayloadItem")

	if err := pi.deletePayload(); err != nil {
		log.WithFields(log.Fields{
			"payload": id,
			"file":    pi.Filename,
			"error":   err,
		}).Warn("Failed to delete payload file")
	}

	return s.bh.Delete(pi.Id, PayloadItem{})
}

// DeleteExpired removes all expired payloads.
func (s *Store) DeleteExpired() {
	var pis []PayloadItem
	if err := s.bh.Find(&pis, badgerhold.Where("Expires").Lt(time.Now())); err != nil {
		log.WithError(err).Warn("Failed to get expired payloads")
		return
	}

	for _, pi := range pis {
		logger := log.WithField("payload", pi.Id)
		if err := s.Delete(pi.Id); err != nil {
			logger.WithError(err).Warn("Failed to delete expired payload")
		} else {
			logger.Info("Deleted expired payload")
		}
	}
}

// QueryId fetches the PayloadItem for the requested identifier.
func (s *Store) QueryId(id string) (pi PayloadItem, err error) {
	err = s.bh.Get(id, &pi)
	return
}

// QueryDestination fetches all PayloadItems addressed to an endpoint.
func (s *Store) QueryDestination(destination string) (pis []PayloadItem, err error) {
	err = s.bh.Find(&pis, badgerhold.Where("Destination").Eq(destination))
	return
}

// QuerySource fetches all PayloadItems sent from an endpoint.
func (s *Store) QuerySource(source string) (pis []PayloadItem, err error) {
	err = s.bh.Find(&pis, badgerhold.Where("Source").Eq(source))
	return
}

// KnowsPayload checks if such a payload is stored.
func (s *Store) KnowsPayload(id string) bool {
	_, err := s.QueryId(id)
	return err != badgerhold.ErrNotFound
}
