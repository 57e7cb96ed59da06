package websocket

import (
	"testing"
)

func TestRingBufferEvictsOldest(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Add(Event{Event: "generation", Seq: uint64(i)})
	}

	events := rb.All()
	if len(events) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(events))
	}
	if events[0].Seq != 3 || events[2].Seq != 5 {
		t.Fatalf("unexpected window: %+v", events)
	}
	if rb.Count() != 3 {
		t.Fatalf("count = %d, want 3", rb.Count())
	}
}

func TestHubEmitBuffersAndSequences(t *testing.T) {
	t.Parallel()

	hub := NewHub(8)
	hub.Emit(Event{Event: "run_started", RunID: "r1"})
	hub.Emit(Event{Event: "generation", RunID: "r1"})

	events := hub.Recent(0)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("sequence numbers not monotone: %+v", events)
	}
	if events[0].Time == "" {
		t.Fatal("events must be timestamped")
	}

	if recent := hub.Recent(1); len(recent) != 1 || recent[0].Seq != 2 {
		t.Fatalf("Recent(1) = %+v, want newest event only", recent)
	}
}

func TestHubEnqueueAfterClientClosureDoesNotPanic(t *testing.T) {
	t.Parallel()

	hub := NewHub(1)
	c := &client{
		id:     "test-client",
		send:   make(chan []byte, 1),
		closed: make(chan struct{}),
		hub:    hub,
	}

	c.close()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("enqueue panicked: %v", r)
		}
	}()

	hub.enqueue(c, []byte("payload"))
}

func TestHubEnqueueDropsOldestMessageWhenFull(t *testing.T) {
	t.Parallel()

	hub := NewHub(1)
	c := &client{
		id:     "ring-client",
		send:   make(chan []byte, 2),
		closed: make(chan struct{}),
		hub:    hub,
	}

	c.send <- []byte("older")
	c.send <- []byte("newer")

	hub.enqueue(c, []byte("latest"))

	first := <-c.send
	if string(first) != "newer" {
		t.Fatalf("expected 'newer' to remain, got %q", string(first))
	}
	second := <-c.send
	if string(second) != "latest" {
		t.Fatalf("expected 'latest' to be enqueued, got %q", string(second))
	}
}
