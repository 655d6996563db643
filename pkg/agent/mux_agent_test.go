// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"testing"
	"time"
)

func TestMuxAgent(t *testing.T) {
	mux := NewMuxAgent()

	mock1 := newMockAgent("dtn://agent/mock-1/")
	mock2 := newMockAgent("dtn://agent/mock-2/")

	mux.Register(mock1)
	mux.Register(mock2)

	if eids := mux.Endpoints(); len(eids) != 2 {
		t.Fatalf("expected two endpoints, got %v", eids)
	}

	mux.Deliver([]byte("hello world"), "dtn://src/", "dtn://agent/mock-1/")
	time.Sleep(250 * time.Millisecond)

	for i, mock := range []*mockAgent{mock1, mock2} {
		if msgs := mock.inbox(); len(msgs) != 1-i {
			t.Fatalf("mock agent%d did not receive %d messages; msgs := %v", i+1, 1-i, msgs)
		} else if 1-i > 0 && string(msgs[0].(PayloadMessage).Payload) != "hello world" {
			t.Fatalf("unexpected message %v", msgs[0])
		}
	}

	mock1.send(ShutdownMessage{})
	time.Sleep(250 * time.Millisecond)

	select {
	case msg := <-mux.MessageSender():
		t.Fatalf("Mux forwarded shutdown message %v", msg)

	case <-time.After(250 * time.Millisecond):
		break
	}

	if eids := mux.Endpoints(); len(eids) != 1 || eids[0] != "dtn://agent/mock-2/" {
		t.Fatalf("mock agent1 was not unregistered, %v", eids)
	}

	mux.Deliver([]byte("nobody"), "dtn://src/", "dtn://agent/mock-1/")
	mux.Deliver([]byte("gumo"), "dtn://src/", "dtn://agent/mock-2/")
	time.Sleep(250 * time.Millisecond)

	if msgs := mock1.inbox(); len(msgs) != 0 {
		t.Fatalf("unregistered mock agent1 received messages %v", msgs)
	}

	if msgs := mock2.inbox(); len(msgs) != 1 {
		t.Fatalf("mock agent2 did not receive messages; msgs := %v", msgs)
	} else if pm := msgs[0].(PayloadMessage); string(pm.Payload) != "gumo" || pm.Source != "dtn://src/" {
		t.Fatalf("unexpected message %v", pm)
	}

	b := createBundle("dtn://agent/mock-2/", "dtn://dst/", []byte("hello"), t)
	go mock2.send(BundleMessage{b})

	select {
	case msg := <-mux.MessageSender():
		if msg, ok := msg.(BundleMessage); !ok {
			t.Fatal("Message is no bundle message")
		} else if msg.Bundle != b {
			t.Fatalf("Expected %v, got %v", b, msg.Bundle)
		}

	case <-time.After(500 * time.Millisecond):
		t.Fatal("Mux did not receive message")
	}

	mux.MessageReceiver() <- ShutdownMessage{}

	select {
	case <-mux.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Mux did not shut down")
	}

	// Done only guarantees the ShutdownMessage was queued for the children.
	if msgs := mock2.awaitInbox(1, time.Second); len(msgs) != 1 {
		t.Fatalf("mock agent did not receive one message; msgs := %v", msgs)
	} else if _, ok := msgs[0].(ShutdownMessage); !ok {
		t.Fatalf("expected %v, got %v", ShutdownMessage{}, msgs[0])
	}

	// Delivering after a shutdown must not block.
	mux.Deliver([]byte("late"), "dtn://src/", "dtn://agent/mock-2/")
}

func TestMuxAgentCongestedChild(t *testing.T) {
	mux := NewMuxAgent()

	slow := &mockAgent{
		endpoints: []string{"dtn://slow/"},
		receiver:  make(chan Message, 1),
		sender:    make(chan Message),
	}
	mux.Register(slow)

	for i := 0; i < 3; i++ {
		mux.Deliver([]byte{byte(i)}, "dtn://src/", "dtn://slow/")
	}

	if l := len(slow.receiver); l != 1 {
		t.Fatalf("expected one queued message, got %d", l)
	}

	mux.MessageReceiver() <- ShutdownMessage{}
	<-mux.Done()
}

func TestMuxAgentShutdownReachesChildren(t *testing.T) {
	for i := 0; i < 20; i++ {
		mux := NewMuxAgent()
		mocks := []*mockAgent{newMockAgent("dtn://a/"), newMockAgent("dtn://b/")}
		for _, mock := range mocks {
			mux.Register(mock)
		}

		mux.MessageReceiver() <- ShutdownMessage{}
		<-mux.Done()

		for j, mock := range mocks {
			msgs := mock.awaitInbox(1, time.Second)
			if len(msgs) != 1 {
				t.Fatalf("run %d: child %d received %v", i, j, msgs)
			} else if _, ok := msgs[0].(ShutdownMessage); !ok {
				t.Fatalf("run %d: child %d received %v instead of a shutdown", i, j, msgs[0])
			}
		}
	}
}
