package audit

import (
	"context"
	"log/slog"
	"time"

	"larkmcp/internal/bus"
)

// Subscriber is satisfied by *bus.EventBus.
type Subscriber interface {
	On(eventType string, handler bus.EventHandler) string
}

// Recorder is the write side of SQLiteStore.
type Recorder interface {
	RecordToolCall(ctx context.Context, c ToolCall) error
	RecordDispatch(ctx context.Context, d Dispatch) error
	RecordStorageOp(ctx context.Context, o StorageOp) error
}

// Attach journals bus events into rec. Write failures are logged and dropped.
func Attach(events Subscriber, rec Recorder, logger *slog.Logger) {
	write := func(what string, err error) {
		if err != nil {
			logger.Warn("audit write failed", "entry", what, "error", err)
		}
	}
	events.On(bus.EventToolAfterExecute, func(e bus.Event) {
		write("tool_call", rec.RecordToolCall(context.Background(), ToolCall{
			Toolset:    str(e.Payload["toolset"]),
			Tool:       str(e.Payload["tool"]),
			DurationMS: int64Of(e.Payload["duration_ms"]),
			ResultSize: int(int64Of(e.Payload["result_size"])),
			Error:      str(e.Payload["error"]),
			CreatedAt:  stamp(e),
		}))
	})
	dispatch := func(e bus.Event) {
		write("dispatch", rec.RecordDispatch(context.Background(), Dispatch{
			Kind:          str(e.Payload["kind"]),
			RecipientKind: str(e.Payload["recipient_kind"]),
			Recipient:     str(e.Payload["recipient"]),
			MessageID:     str(e.Payload["message_id"]),
			Error:         str(e.Payload["error"]),
			CreatedAt:     stamp(e),
		}))
	}
	events.On(bus.EventMessageSent, dispatch)
	events.On(bus.EventMessageFailed, dispatch)
	events.On(bus.EventStorageOperation, func(e bus.Event) {
		write("storage_op", rec.RecordStorageOp(context.Background(), StorageOp{
			Op:        str(e.Payload["op"]),
			Target:    str(e.Payload["target"]),
			Count:     int(int64Of(e.Payload["count"])),
			Error:     str(e.Payload["error"]),
			CreatedAt: stamp(e),
		}))
	})
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func int64Of(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func stamp(e bus.Event) time.Time {
	if e.Timestamp.IsZero() {
		return time.Now()
	}
	return e.Timestamp
}
