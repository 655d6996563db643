// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// WebSocketAgent is a WebSocket based ApplicationAgent.
//
// A client connects with its endpoint as the "endpoint" query parameter, e.g., /ws?endpoint=dtn://foo/. Afterwards,
// each payload delivered to this endpoint is sent as a binary message, a CBOR array of source, destination and
// payload. Binary messages from the client must be CBOR encoded Bundles, which leave the MessageSender as
// BundleMessages.
type WebSocketAgent struct {
	clientMux *MuxAgent
	decoder   *bpv7.Decoder

	upgrader websocket.Upgrader
}

// NewWebSocketAgent will be started with its handler. The ServeHTTP function must be bound to the HTTP server.
func NewWebSocketAgent() *WebSocketAgent {
	return &WebSocketAgent{
		clientMux: NewMuxAgent(),
		decoder:   bpv7.NewDecoder(cbor.DefaultLimits()),
		upgrader:  websocket.Upgrader{},
	}
}

// SetDecoder replaces the Decoder for Bundles sent by clients. It must be called before serving.
func (w *WebSocketAgent) SetDecoder(decoder *bpv7.Decoder) {
	w.decoder = decoder
}

// ServeHTTP must be bound to a HTTP endpoint, e.g., to /ws by a http.ServeMux.
func (w *WebSocketAgent) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		http.Error(rw, "missing endpoint query parameter", http.StatusBadRequest)
		return
	}

	conn, connErr := w.upgrader.Upgrade(rw, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	log.WithFields(log.Fields{
		"web agent client": conn.RemoteAddr().String(),
		"endpoint":         endpoint,
	}).Info("WebSocket client connected")

	client := newWebAgentClient(conn, endpoint, w.decoder)
	w.clientMux.Register(client)

	client.start()
}

// Deliver a payload to all clients registered for its destination.
func (w *WebSocketAgent) Deliver(payload []byte, source, destination string) {
	w.clientMux.Deliver(payload, source, destination)
}

// Shutdown disconnects all clients. Afterwards, Deliver does nothing.
func (w *WebSocketAgent) Shutdown() {
	select {
	case w.clientMux.MessageReceiver() <- ShutdownMessage{}:
		log.Info("WebSocketAgent received a shutdown")
	case <-w.clientMux.Done():
	}
}

// Endpoints of all currently connected clients.
func (w *WebSocketAgent) Endpoints() []string {
	return w.clientMux.Endpoints()
}

// MessageReceiver is a channel on which the ApplicationAgent must listen for incoming Messages.
func (w *WebSocketAgent) MessageReceiver() chan Message {
	return w.clientMux.MessageReceiver()
}

// MessageSender is a channel to which the ApplicationAgent can send outgoing Messages.
func (w *WebSocketAgent) MessageSender() chan Message {
	return w.clientMux.MessageSender()
}
