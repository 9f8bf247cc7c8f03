package metrics

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"larkmcp/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func render(t *testing.T, c *MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	return rec.Body.String()
}

func TestCollector_CounterReuse(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("x_total", "x", `k="1"`)
	b := c.Counter("x_total", "x", `k="1"`)
	a.Inc()
	b.Add(2)
	if a.Value() != 3 {
		t.Fatalf("expected shared counter value 3, got %d", a.Value())
	}
}

func TestCollector_RendersHistogram(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("lat_seconds", "latency", "", []float64{1, 0.1})
	h.Observe(0.05)
	h.Observe(0.5)
	out := render(t, c)
	for _, want := range []string{
		`lat_seconds_bucket{le="0.1"} 1`,
		`lat_seconds_bucket{le="1"} 2`,
		"lat_seconds_count 2",
		"larkmcp_uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestAttach_CountsEvents(t *testing.T) {
	eb := bus.NewEventBus(testLogger())
	c := NewMetricsCollector()
	Attach(eb, c)

	eb.Emit(bus.Event{Type: bus.EventMessageSent, Payload: map[string]any{"kind": "text"}})
	eb.Emit(bus.Event{Type: bus.EventMessageSent, Payload: map[string]any{"kind": "text"}})
	eb.Emit(bus.Event{Type: bus.EventMessageFailed, Payload: map[string]any{"kind": "image", "error": "Image upload failed"}})
	eb.Emit(bus.Event{Type: bus.EventToolAfterExecute, Payload: map[string]any{"tool": "list_all_keys", "duration_ms": int64(20)}})
	eb.Emit(bus.Event{Type: bus.EventStorageOperation, Payload: map[string]any{"op": "delete_file", "error": "denied"}})

	out := render(t, c)
	for _, want := range []string{
		`larkmcp_messages_total{kind="text",status="sent"} 2`,
		`larkmcp_messages_total{kind="image",status="failed"} 1`,
		`larkmcp_tool_calls_total{tool="list_all_keys",status="ok"} 1`,
		`larkmcp_storage_errors_total{op="delete_file"} 1`,
		`larkmcp_tool_latency_seconds_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
