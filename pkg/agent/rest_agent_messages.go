// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"time"

	"github.com/opendtn/dtn7-core/pkg/storage"
)

// RestBundleResponse describes a JSON response for a Bundle POSTed to /bundle.
type RestBundleResponse struct {
	Error    string `json:"error,omitempty"`
	BundleId string `json:"bundle_id,omitempty"`
}

// RestPayload describes a stored payload without its content.
type RestPayload struct {
	Id          string    `json:"id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Received    time.Time `json:"received"`
	Expires     time.Time `json:"expires"`
	Size        int       `json:"size"`
}

func newRestPayload(pi storage.PayloadItem) RestPayload {
	return RestPayload{
		Id:          pi.Id,
		Source:      pi.Source,
		Destination: pi.Destination,
		Received:    pi.Received,
		Expires:     pi.Expires,
		Size:        pi.Size,
	}
}

// RestPayloadsResponse describes a JSON response for /payloads/{destination}.
type RestPayloadsResponse struct {
	Error    string        `json:"error,omitempty"`
	Payloads []RestPayload `json:"payloads"`
}
