package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type memorySink struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *memorySink) Send(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *memorySink) Close() error { return nil }

type orderPaid struct {
	OrderID string `json:"order_id"`
	Gateway string `json:"gateway"`
}

func (orderPaid) EventName() string      { return "payment.completed" }
func (e orderPaid) AggregateKey() string { return e.OrderID }

type subscriptions map[string]domoutbox.Handler

func (s subscriptions) Subscribe(name string, h domoutbox.Handler) { s[name] = h }

func TestRelayWrapsEventInEnvelope(t *testing.T) {
	sink := &memorySink{}
	r := NewRelay(sink, "minishop.", nil)

	require.NoError(t, r.Handle(context.Background(), orderPaid{OrderID: "ord-1", Gateway: "paymob"}))

	require.Len(t, sink.sent, 1)
	msg := sink.sent[0]
	assert.Equal(t, "minishop.payment.completed", msg.Topic)
	assert.Equal(t, []byte("ord-1"), msg.Key)
	assert.Equal(t, "payment.completed", msg.Headers["event_name"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "payment.completed", env.Event)
	assert.Equal(t, msg.Headers["event_id"], env.ID)
	assert.JSONEq(t, `{"order_id":"ord-1","gateway":"paymob"}`, string(env.Payload))
}

func TestRelayAttachSubscribesEachEvent(t *testing.T) {
	subs := subscriptions{}
	NewRelay(&memorySink{}, "", nil).Attach(subs, "order.placed", "payment.completed")

	assert.Len(t, subs, 2)
	assert.Contains(t, subs, "order.placed")
}

func TestRelaySurfacesSinkErrors(t *testing.T) {
	boom := errors.New("broker down")
	r := NewRelay(&memorySink{err: boom}, "", nil)

	err := r.Handle(context.Background(), orderPaid{OrderID: "ord-1"})
	assert.ErrorIs(t, err, boom)
}
