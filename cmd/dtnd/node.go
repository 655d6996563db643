// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/opendtn/dtn7-core/pkg/agent"
	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
	"github.com/opendtn/dtn7-core/pkg/cron"
	"github.com/opendtn/dtn7-core/pkg/reassembly"
	"github.com/opendtn/dtn7-core/pkg/storage"
)

const (
	defaultStoreCleanup = 10 * time.Minute
	shutdownTimeout     = 5 * time.Second
)

// nodeConf is the parsed configuration of a node.
type nodeConf struct {
	limits cbor.Limits
	buffer reassembly.Config

	storePath    string
	storeTTL     time.Duration
	storeCleanup time.Duration

	listen        string
	maxBundleSize int64

	spoolDir    string
	spoolRemove bool
}

// node connects the agents, the reassembly buffer and the store.
//
// Bundles submitted by the REST agent, WebSocket clients or the spool directory are pushed into the reassembly
// buffer. Each reassembled payload is delivered to both the store and the WebSocket clients.
type node struct {
	store  *storage.Store
	buffer *reassembly.Buffer
	ws     *agent.WebSocketAgent
	cron   *cron.Cron
	spool  *spool
	server *http.Server

	stopSyn chan struct{}
	wg      sync.WaitGroup
}

func newNode(conf nodeConf) (n *node, err error) {
	n = &node{
		stopSyn: make(chan struct{}),
	}

	decoder := bpv7.NewDecoder(conf.limits)

	if n.store, err = storage.NewStore(conf.storePath, conf.storeTTL); err != nil {
		return
	}

	n.ws = agent.NewWebSocketAgent()
	n.ws.SetDecoder(decoder)

	if n.buffer, err = reassembly.New(conf.buffer, agent.FanOut(n.store.Deliver, n.ws.Deliver)); err != nil {
		_ = n.store.Close()
		return
	}

	rest := agent.NewRestAgent(n.store, n.submit)
	rest.SetDecoder(decoder)
	if conf.maxBundleSize > 0 {
		rest.SetMaxBundleSize(conf.maxBundleSize)
	}

	n.cron = cron.New(time.Second)
	if conf.storeCleanup <= 0 {
		conf.storeCleanup = defaultStoreCleanup
	}
	if err = n.cron.Register("store-expiry", n.store.DeleteExpired, conf.storeCleanup); err != nil {
		n.closeCore()
		return
	}

	if conf.spoolDir != "" {
		if n.spool, err = newSpool(conf.spoolDir, decoder, n.submit, conf.spoolRemove); err != nil {
			n.closeCore()
			return
		}
	}

	router := mux.NewRouter().UseEncodedPath()
	router.PathPrefix("/rest/").Handler(http.StripPrefix("/rest", rest))
	router.Handle("/ws", n.ws)

	n.server = &http.Server{
		Addr:    conf.listen,
		Handler: router,
	}

	n.wg.Add(2)
	go n.serve()
	go n.handleAgent()

	log.WithFields(log.Fields{
		"listen": conf.listen,
		"store":  conf.storePath,
		"spool":  conf.spoolDir,
	}).Info("Started node")

	return
}

// submit a Bundle into the reassembly buffer.
func (n *node) submit(b *bpv7.Bundle) error {
	logger := log.WithField("bundle", b.ID())

	if err := n.buffer.Push(b); err != nil {
		logger.WithError(err).Warn("Failed to push Bundle into the reassembly buffer")
		return err
	}

	logger.Debug("Pushed Bundle into the reassembly buffer")
	return nil
}

func (n *node) serve() {
	defer n.wg.Done()

	if err := n.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("HTTP server errored")
	}
}

// handleAgent submits Bundles received from WebSocket clients.
func (n *node) handleAgent() {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopSyn:
			return

		case msg := <-n.ws.MessageSender():
			switch msg := msg.(type) {
			case agent.BundleMessage:
				_ = n.submit(msg.Bundle)

			default:
				log.WithField("message", msg).Debug("Ignoring unsupported agent message")
			}
		}
	}
}

// closeCore releases everything except the agents.
func (n *node) closeCore() {
	if n.spool != nil {
		n.spool.Close()
	}
	if n.cron != nil {
		n.cron.Stop()
	}

	n.buffer.Close()

	if err := n.store.Close(); err != nil {
		log.WithError(err).Warn("Closing store errored")
	}
}

// Close the node.
func (n *node) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := n.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Shutting down HTTP server errored")
	}

	n.ws.Shutdown()
	close(n.stopSyn)
	n.wg.Wait()

	n.closeCore()
}
