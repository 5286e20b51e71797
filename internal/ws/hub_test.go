package ws

import (
	"testing"
	"time"
)

type testSubscriber struct {
	gate chan struct{}
	got  chan []byte
}

func newTestSubscriber() *testSubscriber {
	return &testSubscriber{got: make(chan []byte, 32)}
}

func (s *testSubscriber) Send(payload []byte) error {
	if s.gate != nil {
		<-s.gate
	}
	s.got <- payload
	return nil
}

func (s *testSubscriber) Close() {}

func (s *testSubscriber) waitFor(t *testing.T) []byte {
	t.Helper()
	select {
	case payload := <-s.got:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestBroadcastReachesTopicSubscribers(t *testing.T) {
	hub := NewHub(0)
	shipSub := newTestSubscriber()
	fleetSub := newTestSubscriber()
	hub.Register("ship-1", shipSub)
	hub.Register(TopicFleet, fleetSub)

	hub.Broadcast("ship-1", []byte("launched"))
	hub.Broadcast(TopicFleet, []byte("fleet-wide"))

	if got := string(shipSub.waitFor(t)); got != "launched" {
		t.Fatalf("ship subscriber got %q", got)
	}
	if got := string(fleetSub.waitFor(t)); got != "fleet-wide" {
		t.Fatalf("fleet subscriber got %q", got)
	}
	select {
	case payload := <-shipSub.got:
		t.Fatalf("ship subscriber received foreign topic payload %q", payload)
	default:
	}
}

func TestBufferedBroadcastDoesNotBlockPublisher(t *testing.T) {
	const buffer = 8
	hub := NewHub(buffer)
	slow := newTestSubscriber()
	slow.gate = make(chan struct{})
	hub.Register("ship-1", slow)

	// Seed one message so the fan-out loop is stalled inside Send.
	hub.Broadcast("ship-1", []byte("first"))

	done := make(chan struct{})
	go func() {
		for i := 0; i < buffer; i++ {
			hub.Broadcast("ship-1", []byte("burst"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked despite buffered broadcast queue")
	}

	close(slow.gate)
	for i := 0; i < buffer+1; i++ {
		slow.waitFor(t)
	}
}
