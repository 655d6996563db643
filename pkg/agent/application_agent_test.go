// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bytes"
	"testing"
)

func TestAppAgentContainsEndpoint(t *testing.T) {
	appAgent := newMockAgent("dtn://foo/", "dtn://bar/")

	tests := []struct {
		eids  []string
		valid bool
	}{
		{[]string{}, false},
		{[]string{"dtn://foo/"}, true},
		{[]string{"dtn://bar/"}, true},
		{[]string{"dtn://foo/", "dtn://bar/"}, true},
		{[]string{"dtn://bar/", "dtn://foo/"}, true},
		{[]string{"dtn://bar/", "dtn://bar/"}, true},
		{[]string{"dtn://bar/", "dtn://baz/"}, true},
		{[]string{"dtn://baz/"}, false},
		{[]string{"dtn://foo"}, false},
	}

	for _, test := range tests {
		contains := AppAgentContainsEndpoint(appAgent, test.eids)
		if contains != test.valid {
			t.Fatalf("errored for %v", test.eids)
		}
	}

	if !AppAgentHasEndpoint(appAgent, "dtn://foo/") {
		t.Fatal("dtn://foo/ is not an endpoint")
	}
}

func TestFanOut(t *testing.T) {
	var calls []string

	deliver := FanOut(
		func(payload []byte, source, destination string) {
			calls = append(calls, "first:"+string(payload))
		},
		func(payload []byte, source, destination string) {
			calls = append(calls, "second:"+source+"->"+destination)
		})

	deliver([]byte("hello"), "dtn://src/", "dtn://dst/")

	if len(calls) != 2 || calls[0] != "first:hello" || calls[1] != "second:dtn://src/->dtn://dst/" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestPayloadMessage(t *testing.T) {
	pm := PayloadMessage{
		Payload:     []byte("hello world"),
		Source:      "dtn://src/",
		Destination: "dtn://dst/",
	}

	if rec := pm.Recipients(); len(rec) != 1 || rec[0] != "dtn://dst/" {
		t.Fatalf("unexpected recipients %v", rec)
	}

	data, err := pm.MarshalCbor()
	if err != nil {
		t.Fatal(err)
	}

	pm2, err := UnmarshalPayloadMessage(data)
	if err != nil {
		t.Fatal(err)
	} else if pm2.Source != pm.Source || pm2.Destination != pm.Destination || !bytes.Equal(pm2.Payload, pm.Payload) {
		t.Fatalf("expected %v, got %v", pm, pm2)
	}

	invalid := [][]byte{
		{},
		data[:len(data)-1],
		append(append([]byte{}, data...), 0x00),
		{0x83, 0x01, 0x02, 0x03},
		{0x82, 0x60, 0x60},
	}
	for _, data := range invalid {
		if _, err := UnmarshalPayloadMessage(data); err == nil {
			t.Fatalf("%x was accepted", data)
		}
	}
}

func TestShutdownMessageRecipients(t *testing.T) {
	if rec := (ShutdownMessage{}).Recipients(); rec != nil {
		t.Fatalf("expected no recipients, got %v", rec)
	}
}
