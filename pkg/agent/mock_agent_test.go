// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
)

// mockAgent is a trivial implementation of an ApplicationAgent, only used for testing.
type mockAgent struct {
	sync.Mutex

	endpoints []string
	receiver  chan Message
	sender    chan Message

	queue []Message
}

// newMockAgent creates a mockAgent for the given endpoints.
func newMockAgent(endpoints ...string) (m *mockAgent) {
	m = &mockAgent{
		endpoints: endpoints,
		receiver:  make(chan Message, 16),
		sender:    make(chan Message),
	}

	go m.handle()

	return
}

func (m *mockAgent) handle() {
	for msg := range m.receiver {
		m.Lock()
		m.queue = append(m.queue, msg)
		m.Unlock()

		if _, isShutdown := msg.(ShutdownMessage); isShutdown {
			break
		}
	}
}

// inbox returns all received messages and cleans the internal message queue.
func (m *mockAgent) inbox() (msgs []Message) {
	m.Lock()
	defer m.Unlock()

	msgs = m.queue
	m.queue = nil
	return
}

// awaitInbox collects received messages until at least n arrived or the
// timeout expires.
func (m *mockAgent) awaitInbox(n int, timeout time.Duration) (msgs []Message) {
	deadline := time.Now().Add(timeout)
	for {
		msgs = append(msgs, m.inbox()...)
		if len(msgs) >= n || time.Now().After(deadline) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// send an outgoing Message.
func (m *mockAgent) send(msg Message) {
	m.sender <- msg
}

func (m *mockAgent) Endpoints() []string {
	return m.endpoints
}

func (m *mockAgent) MessageReceiver() chan Message {
	return m.receiver
}

func (m *mockAgent) MessageSender() chan Message {
	return m.sender
}

// createBundle builds an unfragmented Bundle without CRCs.
func createBundle(src, dst string, payload []byte, t *testing.T) *bpv7.Bundle {
	b := bpv7.New()
	if err := b.AddPrimaryBlock(bpv7.PrimaryBlockParams{
		CRCType:        bpv7.CRCNo,
		Destination:    dst,
		Source:         src,
		CreationTime:   uint64(bpv7.DtnTimeNow()),
		SequenceNumber: 0,
		Lifetime:       uint64((24 * time.Hour).Milliseconds()),
	}); err != nil {
		t.Fatal(err)
	}

	if err := b.AddPayload(payload, 0, bpv7.CRCNo); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestMockAgent(t *testing.T) {
	mock := newMockAgent("dtn://agent/mock/")

	mock.MessageReceiver() <- PayloadMessage{Payload: []byte("hello world"), Destination: "dtn://agent/mock/"}
	mock.MessageReceiver() <- PayloadMessage{Payload: []byte("gumo world"), Destination: "dtn://agent/mock/"}

	// Give mock's handler time to process the Messages..
	time.Sleep(250 * time.Millisecond)

	if msgs := mock.inbox(); len(msgs) != 2 {
		t.Fatalf("mock agent did not receive two messages; msgs := %v", msgs)
	} else if string(msgs[0].(PayloadMessage).Payload) != "hello world" {
		t.Fatalf("first message is %v", msgs[0])
	} else if string(msgs[1].(PayloadMessage).Payload) != "gumo world" {
		t.Fatalf("second message is %v", msgs[1])
	}

	mock.MessageReceiver() <- ShutdownMessage{}
	time.Sleep(250 * time.Millisecond)

	if msgs := mock.inbox(); len(msgs) != 1 {
		t.Fatalf("mock agent did not receive one message; msgs := %v", msgs)
	} else if _, ok := msgs[0].(ShutdownMessage); !ok {
		t.Fatalf("expected %v, got %v", ShutdownMessage{}, msgs[0])
	}
}
