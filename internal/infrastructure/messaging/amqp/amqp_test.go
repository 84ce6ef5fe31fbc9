package amqp

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/messaging"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestSendPublishesToExchange(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "minishop.events", amqp.ExchangeTopic, true, false, false, false, mock.Anything).Return(nil)
	ch.On("PublishWithContext", mock.Anything, "minishop.events", "order.placed", false, false,
		mock.MatchedBy(func(p amqp.Publishing) bool {
			return p.ContentType == "application/json" &&
				p.DeliveryMode == amqp.Persistent &&
				p.MessageId == "evt-1" &&
				p.CorrelationId == "ord-1" &&
				string(p.Body) == `{"event":"order.placed"}`
		}),
	).Return(nil)

	s, err := newSink(ch, "minishop.events")
	require.NoError(t, err)

	err = s.Send(context.Background(), messaging.Message{
		Topic:   "order.placed",
		Key:     []byte("ord-1"),
		Value:   []byte(`{"event":"order.placed"}`),
		Headers: map[string]string{"event_id": "evt-1"},
	})
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestDeclareFailureClosesChannel(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access refused"))
	ch.On("Close").Return(nil)

	_, err := newSink(ch, "minishop.events")
	assert.ErrorContains(t, err, "access refused")
	ch.AssertCalled(t, "Close")
}
