// Package events forwards bus events to an AMQP topic exchange so other services
// can follow dispatches and storage activity.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"larkmcp/internal/bus"
)

const DefaultExchange = "larkmcp.events"

// Channel is the subset of *amqp.Channel the forwarder uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Subscriber is satisfied by *bus.EventBus.
type Subscriber interface {
	On(eventType string, handler bus.EventHandler) string
}

// Forwarder queues bus events and publishes them from a single goroutine, so a slow
// broker never blocks a tool call. Events that do not fit in the queue are dropped.
type Forwarder struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	prefix   string
	queue    chan bus.Event
	logger   *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	Prefix     string // routing key prefix, e.g. "lark"
	BufferSize int
	Logger     *slog.Logger
}

// Dial connects to the broker and declares the topic exchange.
func Dial(cfg Config) (*Forwarder, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	f, err := NewForwarder(ch, cfg)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

// NewForwarder declares the exchange on an open channel.
func NewForwarder(ch Channel, cfg Config) (*Forwarder, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Forwarder{
		ch:       ch,
		exchange: exchange,
		prefix:   cfg.Prefix,
		queue:    make(chan bus.Event, size),
		logger:   cfg.Logger,
	}, nil
}

// Attach subscribes to every forwarded event type.
func (f *Forwarder) Attach(events Subscriber) {
	for _, typ := range []string{
		bus.EventMessageSent,
		bus.EventMessageFailed,
		bus.EventToolAfterExecute,
		bus.EventStorageOperation,
		bus.EventClientInitialized,
	} {
		events.On(typ, f.enqueue)
	}
}

func (f *Forwarder) enqueue(e bus.Event) {
	select {
	case f.queue <- e:
	default:
		f.logger.Warn("event queue full, dropping", "event", e.Type)
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is left.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case e := <-f.queue:
			f.publish(ctx, e)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for {
				select {
				case e := <-f.queue:
					f.publish(drainCtx, e)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, e bus.Event) {
	body, err := json.Marshal(Envelope(e))
	if err != nil {
		f.logger.Warn("event encode failed", "event", e.Type, "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = f.ch.PublishWithContext(pubCtx, f.exchange, RoutingKey(f.prefix, e), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   e.Timestamp,
	})
	if err != nil {
		f.logger.Warn("event publish failed", "event", e.Type, "error", err)
	}
}

func (f *Forwarder) Close() error {
	err := f.ch.Close()
	if f.conn != nil {
		if cerr := f.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RoutingKey is "<prefix>.<event type>", e.g. "lark.message.failed".
func RoutingKey(prefix string, e bus.Event) string {
	if strings.TrimSpace(prefix) == "" {
		return e.Type
	}
	return prefix + "." + e.Type
}

// Envelope is the published JSON body.
func Envelope(e bus.Event) map[string]any {
	return map[string]any{
		"type":      e.Type,
		"source":    e.Source,
		"payload":   e.Payload,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
