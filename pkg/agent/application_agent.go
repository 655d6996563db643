// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/reassembly"
)

// ApplicationAgent is an interface to describe application agents, which can both receive payloads and submit
// Bundles. Each implementation must provide the following methods to communicate its addresses. Furthermore two
// channels must be available, one for receiving and one for sending Messages.
type ApplicationAgent interface {
	// Endpoints returns the endpoints that this ApplicationAgent answers to.
	Endpoints() []string

	// MessageReceiver is a channel on which the ApplicationAgent must listen for incoming Messages.
	MessageReceiver() chan Message

	// MessageSender is a channel to which the ApplicationAgent can send outgoing Messages.
	MessageSender() chan Message
}

// SubmitFunc accepts a Bundle submitted by an application.
type SubmitFunc func(b *bpv7.Bundle) error

// bagContainsEndpoint checks if some bag of endpoints contains another collection of endpoints.
func bagContainsEndpoint(bag []string, eids []string) bool {
	matches := map[string]struct{}{}

	for _, eid := range eids {
		matches[eid] = struct{}{}
	}

	for _, eid := range bag {
		if _, ok := matches[eid]; ok {
			return true
		}
	}
	return false
}

// AppAgentContainsEndpoint checks if an ApplicationAgent listens to at least one of the requested endpoints.
func AppAgentContainsEndpoint(app ApplicationAgent, eids []string) bool {
	return bagContainsEndpoint(app.Endpoints(), eids)
}

// AppAgentHasEndpoint checks if an ApplicationAgent listens to this endpoint.
func AppAgentHasEndpoint(app ApplicationAgent, eid string) bool {
	return AppAgentContainsEndpoint(app, []string{eid})
}

// FanOut creates a DeliverFunc passing each payload to all given DeliverFuncs in order.
func FanOut(delivers ...reassembly.DeliverFunc) reassembly.DeliverFunc {
	return func(payload []byte, source, destination string) {
		for _, deliver := range delivers {
			deliver(payload, source, destination)
		}
	}
}
