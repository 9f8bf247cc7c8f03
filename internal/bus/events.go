// Package bus is the in-process event fan-out used by dispatch, the tool registry and
// the storage facade. Metrics, the audit journal and the AMQP forwarder subscribe to it.
package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one occurrence worth telling subscribers about.
type Event struct {
	Type      string         // e.g. "message.sent", "tool.after_execute"
	Source    string         // emitting component
	Payload   map[string]any // event-specific fields
	Timestamp time.Time
}

type EventHandler func(Event)

// EventBus delivers events to handlers registered by type, or to "*" for all events.
// A bounded history allows late subscribers (the status command) to look back.
type EventBus struct {
	mu         sync.RWMutex
	handlers   map[string][]namedHandler
	logger     *slog.Logger
	history    []Event
	maxHistory int
	nextID     atomic.Uint64
}

type namedHandler struct {
	ID      string
	Handler EventHandler
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:   make(map[string][]namedHandler),
		logger:     logger,
		maxHistory: 500,
	}
}

// On registers handler for eventType and returns an id for Off.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	id := eventType + "#" + strconv.FormatUint(eb.nextID.Add(1), 10)
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{ID: id, Handler: handler})
	return id
}

func (eb *EventBus) Off(eventType, handlerID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if h.ID == handlerID {
			eb.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every matching handler synchronously, specific handlers before wildcard ones.
// A panicking handler is logged and does not stop the others.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.history) >= eb.maxHistory {
		eb.history = eb.history[1:]
	}
	eb.history = append(eb.history, event)
	handlers := make([]namedHandler, 0, len(eb.handlers[event.Type])+len(eb.handlers["*"]))
	handlers = append(handlers, eb.handlers[event.Type]...)
	handlers = append(handlers, eb.handlers["*"]...)
	eb.mu.Unlock()

	for _, h := range handlers {
		eb.call(h, event)
	}
}

func (eb *EventBus) call(h namedHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", h.ID, "panic", r)
		}
	}()
	h.Handler(event)
}

func (eb *EventBus) EmitAsync(event Event) {
	go eb.Emit(event)
}

// Replay returns recorded events of eventType ("*" for all) at or after since.
func (eb *EventBus) Replay(eventType string, since time.Time) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var result []Event
	for _, e := range eb.history {
		if e.Timestamp.Before(since) {
			continue
		}
		if eventType == "*" || e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

func (eb *EventBus) HistoryLen() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.history)
}

const (
	EventMessageSent       = "message.sent"
	EventMessageFailed     = "message.failed"
	EventToolBeforeExecute = "tool.before_execute"
	EventToolAfterExecute  = "tool.after_execute"
	EventStorageOperation  = "storage.operation"
	EventClientInitialized = "client.initialized"
)
