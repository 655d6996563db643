// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
	"github.com/opendtn/dtn7-core/pkg/reassembly"
	"github.com/opendtn/dtn7-core/pkg/storage"
)

// DefaultMaxBundleSize limits the body of a POSTed Bundle.
const DefaultMaxBundleSize int64 = 16 << 20

// RestAgent is a RESTful Application Agent to submit bundles and to fetch delivered payloads.
//
// Endpoints in paths must be URL encoded, e.g., /payloads/dtn%3A%2F%2Ffoo%2F.
type RestAgent struct {
	router *mux.Router

	store         *storage.Store
	submit        SubmitFunc
	decoder       *bpv7.Decoder
	maxBundleSize int64
}

// NewRestAgent creates a new RESTful Application Agent. Submitted bundles are passed to submit, payloads are
// queried from the store.
func NewRestAgent(store *storage.Store, submit SubmitFunc) (ra *RestAgent) {
	ra = &RestAgent{
		router: mux.NewRouter().UseEncodedPath(),

		store:         store,
		submit:        submit,
		decoder:       bpv7.NewDecoder(cbor.DefaultLimits()),
		maxBundleSize: DefaultMaxBundleSize,
	}

	ra.router.HandleFunc("/bundle", ra.handleBundle).Methods(http.MethodPost)
	ra.router.HandleFunc("/payloads/{destination}", ra.handlePayloads).Methods(http.MethodGet)
	ra.router.HandleFunc("/payload/{id}", ra.handlePayload).Methods(http.MethodGet)
	ra.router.HandleFunc("/payload/{id}", ra.handleDeletePayload).Methods(http.MethodDelete)

	return ra
}

// SetMaxBundleSize limits the size of POSTed Bundles.
func (ra *RestAgent) SetMaxBundleSize(size int64) {
	ra.maxBundleSize = size
}

// SetDecoder replaces the Decoder for POSTed Bundles, e.g., to apply stricter Limits.
func (ra *RestAgent) SetDecoder(decoder *bpv7.Decoder) {
	ra.decoder = decoder
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint, e.g., /rest.
func (ra *RestAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ra.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write REST response")
	}
}

// handleBundle processes /bundle POST requests. The body is a CBOR encoded Bundle.
func (ra *RestAgent) handleBundle(w http.ResponseWriter, r *http.Request) {
	var (
		response RestBundleResponse
		status   = http.StatusAccepted
	)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ra.maxBundleSize))
	if err != nil {
		response.Error = err.Error()
		status = http.StatusRequestEntityTooLarge
	} else if m, b, n := ra.decoder.Decode(data); m != cbor.Full {
		response.Error = "invalid bundle: " + m.String()
		status = http.StatusBadRequest
	} else if n != len(data) {
		response.Error = "trailing data after bundle"
		status = http.StatusBadRequest
	} else if err := ra.submit(b); errors.Is(err, reassembly.ErrLockTimeout) {
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	} else if err != nil {
		response.Error = err.Error()
		status = http.StatusInternalServerError
	} else {
		response.BundleId = b.ID().String()
	}

	log.WithFields(log.Fields{
		"size":     len(data),
		"response": response,
	}).Info("Processing REST bundle submission")

	writeJSON(w, status, response)
}

// handlePayloads processes /payloads/{destination} GET requests.
func (ra *RestAgent) handlePayloads(w http.ResponseWriter, r *http.Request) {
	var response RestPayloadsResponse

	destination, err := url.PathUnescape(mux.Vars(r)["destination"])
	if err != nil {
		response.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, response)
		return
	}

	pis, err := ra.store.QueryDestination(destination)
	if err != nil {
		response.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, response)
		return
	}

	response.Payloads = make([]RestPayload, 0, len(pis))
	for _, pi := range pis {
		response.Payloads = append(response.Payloads, newRestPayload(pi))
	}

	log.WithFields(log.Fields{
		"destination": destination,
		"payloads":    len(response.Payloads),
	}).Debug("Processing REST payload query")

	writeJSON(w, http.StatusOK, response)
}

// handlePayload processes /payload/{id} GET requests and returns the raw payload.
func (ra *RestAgent) handlePayload(w http.ResponseWriter, r *http.Request) {
	pi, err := ra.store.QueryId(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "unknown payload", http.StatusNotFound)
		return
	}

	payload, err := pi.Load()
	if err != nil {
		log.WithError(err).WithField("payload", pi.Id).Warn("Failed to load payload")
		http.Error(w, "failed to load payload", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(payload); err != nil {
		log.WithError(err).Warn("Failed to write REST payload")
	}
}

// handleDeletePayload processes /payload/{id} DELETE requests.
func (ra *RestAgent) handleDeletePayload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ra.store.KnowsPayload(id) {
		http.Error(w, "unknown payload", http.StatusNotFound)
		return
	}

	if err := ra.store.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
