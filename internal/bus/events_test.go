package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testEBLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEventBus_EmitAndReceive(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var received int32
	eb.On(EventMessageSent, func(e Event) {
		if e.Payload["kind"] != "text" {
			t.Errorf("unexpected payload %v", e.Payload)
		}
		atomic.AddInt32(&received, 1)
	})

	eb.Emit(Event{Type: EventMessageSent, Payload: map[string]any{"kind": "text"}})

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("expected 1 event received, got %d", received)
	}
}

func TestEventBus_WildcardAfterSpecific(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var order []string
	eb.On("*", func(e Event) { order = append(order, "wildcard") })
	eb.On(EventMessageFailed, func(e Event) { order = append(order, "specific") })

	eb.Emit(Event{Type: EventMessageFailed})
	eb.Emit(Event{Type: EventToolAfterExecute})

	if len(order) != 3 || order[0] != "specific" || order[1] != "wildcard" {
		t.Fatalf("unexpected call order %v", order)
	}
}

func TestEventBus_Off(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var a, b int32
	idA := eb.On("x", func(e Event) { atomic.AddInt32(&a, 1) })
	eb.On("x", func(e Event) { atomic.AddInt32(&b, 1) })

	eb.Emit(Event{Type: "x"})
	eb.Off("x", idA)
	eb.Emit(Event{Type: "x"})

	if atomic.LoadInt32(&a) != 1 || atomic.LoadInt32(&b) != 2 {
		t.Errorf("expected a=1 b=2, got a=%d b=%d", a, b)
	}
}

func TestEventBus_IDsAreUnique(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	id1 := eb.On("x", func(Event) {})
	eb.Off("x", id1)
	id2 := eb.On("x", func(Event) {})
	if id1 == id2 {
		t.Fatalf("handler id reused: %s", id1)
	}
}

func TestEventBus_Replay(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	eb.Emit(Event{Type: "a"})
	eb.Emit(Event{Type: "b"})
	eb.Emit(Event{Type: "a"})

	if got := len(eb.Replay("a", time.Time{})); got != 2 {
		t.Errorf("expected 2 'a' events, got %d", got)
	}
	if got := len(eb.Replay("*", time.Time{})); got != 3 {
		t.Errorf("expected 3 total events, got %d", got)
	}
	if got := len(eb.Replay("*", time.Now().Add(time.Hour))); got != 0 {
		t.Errorf("expected no future events, got %d", got)
	}
}

func TestEventBus_HistoryBounded(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	eb.maxHistory = 3
	for i := 0; i < 10; i++ {
		eb.Emit(Event{Type: "tick"})
	}
	if eb.HistoryLen() != 3 {
		t.Fatalf("expected history capped at 3, got %d", eb.HistoryLen())
	}
}

func TestEventBus_PanicRecovery(t *testing.T) {
	eb := NewEventBus(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1})))

	var after int32
	eb.On("boom", func(e Event) { panic("handler failed") })
	eb.On("boom", func(e Event) { atomic.AddInt32(&after, 1) })

	eb.Emit(Event{Type: "boom"})

	if atomic.LoadInt32(&after) != 1 {
		t.Fatal("handler after a panicking one should still run")
	}
}

func TestEventBus_EmitAsync(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	done := make(chan struct{})
	eb.On(EventStorageOperation, func(e Event) { close(done) })
	eb.EmitAsync(Event{Type: EventStorageOperation})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async event not delivered")
	}
}

func TestEventBus_TimestampDefaulted(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	eb.Emit(Event{Type: "t"})
	if eb.Replay("t", time.Time{})[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}
