// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/opendtn/dtn7-core/pkg/agent"
	"github.com/opendtn/dtn7-core/pkg/bpv7"
)

const payloadSuffix = ".payload"

// exchange Bundles and payloads between an user and a dtnd over the filesystem.
type exchange struct {
	directory  string
	knownFiles sync.Map

	conn       *websocket.Conn
	writeMutex sync.Mutex
	watcher    *fsnotify.Watcher

	closeChan       chan os.Signal
	payloadReadChan chan agent.PayloadMessage
}

func newExchangeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exchange WEBSOCKET ENDPOINT DIRECTORY",
		Short: "Exchange Bundles with a dtnd over a directory",
		Long: `Connect to the WebSocket agent of a dtnd for ENDPOINT. Each delivered payload is
written into DIRECTORY as a file ending in .payload. If the user drops a Bundle
file into DIRECTORY, its Bundles are sent to the dtnd.`,

		Example: `  dtn-tool exchange ws://localhost:8080/ws dtn://alice/ /tmp/alice`,

		Args: cobra.ExactArgs(3),

		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := startExchange(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			go ex.handlePayloadRead()
			ex.handler()
			return nil
		},
	}

	return cmd
}

// startExchange connects to the dtnd and watches the directory.
func startExchange(websocketAddr, endpoint, directory string) (ex *exchange, err error) {
	u, err := url.Parse(websocketAddr)
	if err != nil {
		return
	}
	u.RawQuery = url.Values{"endpoint": []string{endpoint}}.Encode()

	ex = &exchange{
		directory:       directory,
		closeChan:       make(chan os.Signal, 1),
		payloadReadChan: make(chan agent.PayloadMessage),
	}

	if ex.conn, _, err = websocket.DefaultDialer.Dial(u.String(), nil); err != nil {
		return nil, fmt.Errorf("connecting to WebSocket agent: %w", err)
	}

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		_ = ex.conn.Close()
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	if err = ex.watcher.Add(directory); err != nil {
		_ = ex.conn.Close()
		_ = ex.watcher.Close()
		return nil, fmt.Errorf("adding directory to file watcher: %w", err)
	}

	signal.Notify(ex.closeChan, os.Interrupt)
	return
}

func (ex *exchange) handler() {
	defer func() {
		_ = ex.watcher.Close()
		_ = ex.conn.Close()
	}()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(e.Name); ok || strings.HasSuffix(e.Name, payloadSuffix) {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.knownFiles.Store(e.Name, struct{}{})
			ex.readNewFile(e.Name)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case pm, ok := <-ex.payloadReadChan:
			if !ok {
				log.Error("WebSocket reader was closed")
				return
			}

			fileName := fmt.Sprintf("%s-%d%s", hex.EncodeToString([]byte(pm.Source)), time.Now().UnixNano(), payloadSuffix)
			filePath := filepath.Join(ex.directory, fileName)
			logger := log.WithFields(log.Fields{
				"source": pm.Source,
				"file":   filePath,
			})

			if err := os.WriteFile(filePath, pm.Payload, 0644); err != nil {
				logger.WithError(err).Error("Writing payload errored")
				return
			}

			logger.Info("Saved received payload")
		}
	}
}

func (ex *exchange) readBundles(name string) (bundles []*bpv7.Bundle, err error) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	defer f.Close()

	stream := bpv7.NewReader(f, nil)
	for {
		b, nextErr := stream.Next()
		if errors.Is(nextErr, io.EOF) && len(bundles) > 0 {
			return
		} else if nextErr != nil {
			err = nextErr
			return
		}
		bundles = append(bundles, b)
	}
}

func (ex *exchange) writeBundle(b *bpv7.Bundle) error {
	data, err := b.Marshal()
	if err != nil {
		return err
	}

	ex.writeMutex.Lock()
	defer ex.writeMutex.Unlock()

	return ex.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (ex *exchange) readNewFile(name string) {
	for i := 0; i < 5; i++ {
		bundles, err := ex.readBundles(name)
		if err != nil {
			log.WithError(err).WithField("file", name).Warn("Reading Bundles errored, retrying..")
			time.Sleep(time.Duration(1<<i) * 100 * time.Millisecond)
			continue
		}

		for _, b := range bundles {
			if err := ex.writeBundle(b); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"file":   name,
					"bundle": b.ID().String(),
				}).Error("Sending Bundle errored")
				return
			}

			log.WithFields(log.Fields{
				"file":   name,
				"bundle": b.ID().String(),
			}).Info("Sent Bundle")
		}
		return
	}

	log.WithField("file", name).Error("Failed to process file, giving up.")
}

func (ex *exchange) handlePayloadRead() {
	defer close(ex.payloadReadChan)

	for {
		if _, data, err := ex.conn.ReadMessage(); err != nil {
			log.WithError(err).Error("Reading WebSocket message errored")
			return
		} else if pm, err := agent.UnmarshalPayloadMessage(data); err != nil {
			log.WithError(err).Warn("Received invalid payload message")
		} else {
			ex.payloadReadChan <- pm
		}
	}
}
