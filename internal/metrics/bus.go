package metrics

import (
	"fmt"

	"larkmcp/internal/bus"
)

// Subscriber is satisfied by *bus.EventBus.
type Subscriber interface {
	On(eventType string, handler bus.EventHandler) string
}

// Attach counts dispatch, tool and storage events into c.
func Attach(events Subscriber, c *MetricsCollector) {
	toolLatency := c.Histogram("larkmcp_tool_latency_seconds", "Tool execution latency in seconds", "",
		[]float64{0.1, 0.5, 1, 5, 10, 30})

	events.On(bus.EventMessageSent, func(e bus.Event) {
		c.Counter("larkmcp_messages_total", "Messages dispatched", label("kind", e.Payload["kind"])+`,status="sent"`).Inc()
	})
	events.On(bus.EventMessageFailed, func(e bus.Event) {
		c.Counter("larkmcp_messages_total", "Messages dispatched", label("kind", e.Payload["kind"])+`,status="failed"`).Inc()
	})
	events.On(bus.EventToolAfterExecute, func(e bus.Event) {
		status := "ok"
		if _, failed := e.Payload["error"]; failed {
			status = "error"
		}
		c.Counter("larkmcp_tool_calls_total", "Tool calls", label("tool", e.Payload["tool"])+`,status="`+status+`"`).Inc()
		if ms, ok := e.Payload["duration_ms"].(int64); ok {
			toolLatency.Observe(float64(ms) / 1000)
		}
	})
	events.On(bus.EventStorageOperation, func(e bus.Event) {
		c.Counter("larkmcp_storage_operations_total", "Storage operations", label("op", e.Payload["op"])).Inc()
		if _, failed := e.Payload["error"]; failed {
			c.Counter("larkmcp_storage_errors_total", "Failed storage operations", label("op", e.Payload["op"])).Inc()
		}
	})
	events.On(bus.EventClientInitialized, func(e bus.Event) {
		c.Gauge("larkmcp_client_initialized", "Collaborator clients initialized", label("client", e.Payload["client"])).Set(1)
	})
}

func label(name string, v any) string {
	return fmt.Sprintf("%s=%q", name, fmt.Sprint(v))
}
