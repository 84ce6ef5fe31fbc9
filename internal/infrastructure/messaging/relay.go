// Package messaging forwards in-process domain events to an external broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const componentRelay = "event_relay"

// Message is a broker-neutral record handed to a Sink.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Sink delivers messages to a broker.
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Envelope is the JSON document written for every relayed event.
type Envelope struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Relay subscribes to bus events and sends them to a Sink.
type Relay struct {
	sink    Sink
	prefix  string
	relayed observability.Counter // events_relayed_total{event,outcome}
	log     observability.Logger
	now     func() time.Time
}

func NewRelay(sink Sink, topicPrefix string, tel observability.Observability) *Relay {
	_, logger, metrics := observability.Resolve(tel)
	return &Relay{
		sink:    sink,
		prefix:  topicPrefix,
		relayed: metrics.Counter(observability.MEventsRelayed),
		log:     logger.With(observability.F("component", componentRelay)),
		now:     time.Now,
	}
}

// Attach subscribes the relay to each named event.
func (r *Relay) Attach(sub domoutbox.Subscriber, events ...string) {
	for _, name := range events {
		sub.Subscribe(name, r.Handle)
	}
}

// Topic is the broker topic (or routing key) an event is sent to.
func (r *Relay) Topic(eventName string) string { return r.prefix + eventName }

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	logger := logctx.FromOr(ctx, r.log).With(observability.F("event", name))

	msg, err := r.encode(e)
	if err != nil {
		r.relayed.Add(1, observability.L("event", name), observability.L("outcome", "encode_error"))
		logger.Error("event_relay_encode_failed", observability.F("error", err))
		return err
	}
	if err := r.sink.Send(ctx, msg); err != nil {
		r.relayed.Add(1, observability.L("event", name), observability.L("outcome", "error"))
		logger.Warn("event_relay_failed",
			observability.F("topic", msg.Topic),
			observability.F("error", err),
		)
		return fmt.Errorf("relay %s: %w", name, err)
	}

	r.relayed.Add(1, observability.L("event", name), observability.L("outcome", "success"))
	logger.Debug("event_relayed", observability.F("topic", msg.Topic))
	return nil
}

func (r *Relay) Close() error { return r.sink.Close() }

func (r *Relay) encode(e domoutbox.Event) (Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Event:      e.EventName(),
		OccurredAt: r.now().UTC(),
		Payload:    payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Topic: r.Topic(env.Event),
		Key:   []byte(domoutbox.KeyOf(e)),
		Value: value,
		Headers: map[string]string{
			"event_id":     env.ID,
			"event_name":   env.Event,
			"content_type": "application/json",
		},
	}, nil
}
