// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// MuxAgent mimics an ApplicationAgent to be used as a multiplexer for different ApplicationAgents.
//
// Messages are passed to the children without blocking. A child's MessageReceiver should be buffered, Messages for
// a congested child are dropped.
type MuxAgent struct {
	sync.Mutex

	receiver chan Message
	sender   chan Message
	done     chan struct{}

	children []ApplicationAgent
}

// NewMuxAgent creates a new MuxAgent used to multiplex different ApplicationAgents.
func NewMuxAgent() (mux *MuxAgent) {
	mux = &MuxAgent{
		receiver: make(chan Message),
		sender:   make(chan Message),
		done:     make(chan struct{}),
	}

	go mux.handle()

	return
}

func (mux *MuxAgent) handle() {
	defer close(mux.done)

	for msg := range mux.receiver {
		mux.Lock()
		for _, child := range mux.children {
			if rec := msg.Recipients(); rec == nil || AppAgentContainsEndpoint(child, rec) {
				select {
				case child.MessageReceiver() <- msg:
				default:
					log.WithField("endpoints", child.Endpoints()).Warn("ApplicationAgent is congested, dropping message")
				}
			}
		}
		mux.Unlock()

		if _, isShutdown := msg.(ShutdownMessage); isShutdown {
			return
		}
	}
}

// Register a new ApplicationAgent for this multiplexer.
// If this ApplicationAgent sends a ShutdownMessage or closes its MessageSender, it will be unregistered.
func (mux *MuxAgent) Register(agent ApplicationAgent) {
	mux.Lock()
	defer mux.Unlock()

	mux.children = append(mux.children, agent)
	go mux.handleChild(agent)
}

func (mux *MuxAgent) handleChild(agent ApplicationAgent) {
	for msg := range agent.MessageSender() {
		if _, isShutdown := msg.(ShutdownMessage); isShutdown {
			break
		}

		select {
		case mux.sender <- msg:
		case <-mux.done:
		}
	}

	mux.unregister(agent)
}

// unregister a previously registered ApplicationAgent and close its MessageReceiver.
func (mux *MuxAgent) unregister(agent ApplicationAgent) {
	mux.Lock()
	defer mux.Unlock()

	for i, child := range mux.children {
		if child == agent {
			mux.children = append(mux.children[:i], mux.children[i+1:]...)
			close(agent.MessageReceiver())
			break
		}
	}
}

// Deliver a payload to all children listening to its destination. It does nothing after a shutdown.
func (mux *MuxAgent) Deliver(payload []byte, source, destination string) {
	select {
	case mux.receiver <- PayloadMessage{Payload: payload, Source: source, Destination: destination}:
	case <-mux.done:
	}
}

// Done is closed after the MuxAgent queued a ShutdownMessage for its children.
// The children may not have processed it yet.
func (mux *MuxAgent) Done() <-chan struct{} {
	return mux.done
}

func (mux *MuxAgent) Endpoints() (endpoints []string) {
	mux.Lock()
	defer mux.Unlock()

	for _, child := range mux.children {
		endpoints = append(endpoints, child.Endpoints()...)
	}
	return
}

func (mux *MuxAgent) MessageReceiver() chan Message {
	return mux.receiver
}

func (mux *MuxAgent) MessageSender() chan Message {
	return mux.sender
}
