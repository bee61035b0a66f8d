package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}
	// A nil dispatcher is a safe receiver.
	d.Emit(context.Background(), Event{EventType: "login"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestEventsAreStampedAndDelivered(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	d.Emit(context.Background(), Event{EventType: "login", Success: true})
	d.Close()

	if sink.len() != 1 {
		t.Fatalf("delivered = %d, want 1", sink.len())
	}
	event := sink.events[0]
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Fatalf("event not stamped: %+v", event)
	}
	if event.EventType != "login" || !event.Success {
		t.Fatalf("event = %+v", event)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "renewal"})
	}
	d.Close()

	if sink.len() != 20 {
		t.Fatalf("delivered = %d, want 20", sink.len())
	}
}

func TestDropIfFullNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	blocking := sinkFunc(func(context.Context, Event) { <-block })
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, blocking)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "login"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}
	close(block)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "logout", UserID: "u-1"})
	d.Close()

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding sink output: %v", err)
	}
	if decoded.EventType != "logout" || decoded.UserID != "u-1" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

type sinkFunc func(ctx context.Context, event Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }
