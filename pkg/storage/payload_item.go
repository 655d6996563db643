// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/ulikunitz/xz"
)

// PayloadItem is the meta data of a delivered payload. The payload itself is
// stored xz compressed in a file next to the database.
type PayloadItem struct {
	Id string `badgerhold:"key"`

	Source      string `badgerholdIndex:"Source"`
	Destination string `badgerholdIndex:"Destination"`

	Received time.Time
	Expires  time.Time `badgerholdIndex:"Expires"`

	Size     int
	Filename string
}

// payloadId derives an identifier from a payload and its endpoints.
func payloadId(payload []byte, source, destination string) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00", source, destination)
	_, _ = h.Write(payload)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func newPayloadItem(payload []byte, source, destination, payloadDir string, ttl time.Duration) PayloadItem {
	id := payloadId(payload, source, destination)
	now := time.Now()

	return PayloadItem{
		Id: id,

		Source:      source,
		Destination: destination,

		Received: now,
		Expires:  now.Add(ttl),

		Size:     len(payload),
		Filename: path.Join(payloadDir, id+".xz"),
	}
}

// storePayload writes the compressed payload to the PayloadItem's file.
func (pi PayloadItem) storePayload(payload []byte) error {
	f, err := os.OpenFile(pi.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	xzW, err := xz.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return err
	}

	if _, err := xzW.Write(payload); err != nil {
		_ = xzW.Close()
		_ = f.Close()
		return err
	}
	if err := xzW.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// deletePayload removes the payload file.
func (pi PayloadItem) deletePayload() error {
	return os.Remove(pi.Filename)
}

// Load the decompressed payload from the disk.
func (pi PayloadItem) Load() ([]byte, error) {
	f, err := os.Open(pi.Filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	xzR, err := xz.NewReader(f)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(pi.Size)
	if _, err := io.Copy(&buf, xzR); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
