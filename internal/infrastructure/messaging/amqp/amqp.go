// Package amqp sends relayed events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/messaging"
)

// channel is the subset of *amqp.Channel the sink uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Sink publishes each message with its topic as the routing key.
type Sink struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

var _ messaging.Sink = (*Sink)(nil)

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	s, err := newSink(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func newSink(ch channel, exchange string) (*Sink, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", exchange, err)
	}
	return &Sink{ch: ch, exchange: exchange}, nil
}

func (s *Sink) Send(ctx context.Context, msg messaging.Message) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return s.ch.PublishWithContext(ctx, s.exchange, msg.Topic, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.Headers["event_id"],
		CorrelationId: string(msg.Key),
		Timestamp:     time.Now().UTC(),
		Headers:       headers,
		Body:          msg.Value,
	})
}

func (s *Sink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
