// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/cbor"
)

// Message is a generic interface to specify an information exchange between an ApplicationAgent and the node.
// The following types named *Message are implementations of this interface.
type Message interface {
	// Recipients returns a list of endpoints to which this message is addressed.
	// However, if this message is not addressed to some specific endpoint, nil must be returned.
	Recipients() []string
}

// PayloadMessage is a delivered payload, sent to an ApplicationAgent.
type PayloadMessage struct {
	Payload     []byte
	Source      string
	Destination string
}

// Recipients are the payload's destination.
func (pm PayloadMessage) Recipients() []string {
	return []string{pm.Destination}
}

// MarshalCbor encodes this PayloadMessage as a CBOR array of source, destination and payload.
func (pm PayloadMessage) MarshalCbor() ([]byte, error) {
	return cbor.Marshal(cbor.NewArray(
		cbor.Text(pm.Source),
		cbor.Text(pm.Destination),
		cbor.Bytes(pm.Payload)))
}

// UnmarshalPayloadMessage decodes a PayloadMessage created by MarshalCbor.
func UnmarshalPayloadMessage(data []byte) (pm PayloadMessage, err error) {
	m, v, n := cbor.Decode(data)
	if m != cbor.Full || n != len(data) {
		err = fmt.Errorf("payload message is no single CBOR item, %v", m)
		return
	}

	arr, ok := v.(*cbor.Array)
	if !ok || arr.Len() != 3 {
		err = fmt.Errorf("payload message is no array of three items")
		return
	}

	var okSrc, okDst, okPayload bool
	pm.Source, okSrc = cbor.AsString(arr.Get(0))
	pm.Destination, okDst = cbor.AsString(arr.Get(1))
	pm.Payload, okPayload = cbor.AsBytes(arr.Get(2))
	if !okSrc || !okDst || !okPayload {
		err = fmt.Errorf("payload message has invalid fields")
	}
	return
}

// BundleMessage is a Bundle submitted by an ApplicationAgent.
type BundleMessage struct {
	Bundle *bpv7.Bundle
}

// Recipients are the Bundle destination for a BundleMessage.
func (bm BundleMessage) Recipients() []string {
	return []string{bm.Bundle.Destination()}
}

// ShutdownMessage indicates the closing down of an ApplicationAgent.
// If the Message is received from an ApplicationAgent, it must close itself down.
type ShutdownMessage struct{}

// Recipients are not available for a ShutdownMessage.
func (sm ShutdownMessage) Recipients() []string {
	return nil
}
