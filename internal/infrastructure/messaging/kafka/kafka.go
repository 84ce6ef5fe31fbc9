// Package kafka sends relayed events to Kafka with segmentio/kafka-go.
package kafka

import (
	"context"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/messaging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// Sink writes each message to the topic it names.
type Sink struct {
	w messageWriter
}

var _ messaging.Sink = (*Sink)(nil)

// NewSink creates a writer without a fixed topic; keys are hashed so events of
// one order land on the same partition.
func NewSink(brokers []string) *Sink {
	return &Sink{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Balancer:               &kafkaGo.Hash{},
		RequiredAcks:           kafkaGo.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (s *Sink) Send(ctx context.Context, msg messaging.Message) error {
	headers := make([]kafkaGo.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafkaGo.Header{Key: k, Value: []byte(v)})
	}
	return s.w.WriteMessages(ctx, kafkaGo.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

func (s *Sink) Close() error { return s.w.Close() }
