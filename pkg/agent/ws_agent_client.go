// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
)

const clientQueueSize = 64

type webAgentClient struct {
	writeMutex sync.Mutex

	conn     *websocket.Conn
	endpoint string
	decoder  *bpv7.Decoder
	receiver chan Message
	sender   chan Message

	closeOnce sync.Once
}

func newWebAgentClient(conn *websocket.Conn, endpoint string, decoder *bpv7.Decoder) *webAgentClient {
	return &webAgentClient{
		conn:     conn,
		endpoint: endpoint,
		decoder:  decoder,
		receiver: make(chan Message, clientQueueSize),
		sender:   make(chan Message),
	}
}

func (client *webAgentClient) start() {
	go client.handleReceiver()
	client.handleConn()
}

// closeConn terminates the connection. Afterwards, handleConn closes the sender.
func (client *webAgentClient) closeConn() {
	client.closeOnce.Do(func() {
		log.WithField("web agent client", client.conn.RemoteAddr().String()).Debug("Closing connection")

		_ = client.conn.Close()
	})
}

func (client *webAgentClient) handleReceiver() {
	var logger = log.WithFields(log.Fields{
		"web agent client": client.conn.RemoteAddr().String(),
		"endpoint":         client.endpoint,
	})

	for msg := range client.receiver {
		switch msg := msg.(type) {
		case ShutdownMessage:
			logger.Debug("Received Shutdown")
			client.closeConn()

		case PayloadMessage:
			if err := client.writeMessage(msg); err != nil {
				logger.WithError(err).Warn("Sending payload errored")
				client.closeConn()
			} else {
				logger.WithFields(log.Fields{
					"source": msg.Source,
					"size":   len(msg.Payload),
				}).Info("Sent payload to client")
			}

		default:
			logger.WithField("message", msg).Info("Received unknown / unsupported message")
		}
	}
}

func (client *webAgentClient) handleConn() {
	defer close(client.sender)
	defer client.closeConn()

	var logger = log.WithField("web agent client", client.conn.RemoteAddr().String())

	for {
		if messageType, reader, err := client.conn.NextReader(); err != nil {
			if errors.Is(err, net.ErrClosed) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Debug("Reader errored due to closed connection")
			} else {
				logger.WithError(err).Warn("Opening next Websocket Reader errored")
			}
			return
		} else if messageType != websocket.BinaryMessage {
			logger.WithField("message type", messageType).Warn("Websocket Reader's type is not binary")
			return
		} else if data, err := io.ReadAll(reader); err != nil {
			logger.WithError(err).Warn("Reading Websocket message errored")
			return
		} else if m, b, n := client.decoder.Decode(data); m != cbor.Full || n != len(data) {
			logger.WithField("match", m).Warn("Websocket message is no single Bundle")
			return
		} else {
			logger.WithField("bundle", b.ID()).Info("Received Bundle")
			client.sender <- BundleMessage{b}
		}
	}
}

func (client *webAgentClient) writeMessage(msg PayloadMessage) error {
	client.writeMutex.Lock()
	defer client.writeMutex.Unlock()

	data, err := msg.MarshalCbor()
	if err != nil {
		return err
	}
	return client.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (client *webAgentClient) Endpoints() []string {
	return []string{client.endpoint}
}

func (client *webAgentClient) MessageReceiver() chan Message {
	return client.receiver
}

func (client *webAgentClient) MessageSender() chan Message {
	return client.sender
}
