package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envelope-service/internal/codec"
	"envelope-service/internal/logging"
	"envelope-service/internal/messages"
)

type fakeAcknowledger struct {
	acked  int
	nacked int
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked++
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.nacked++
	return nil
}

func jsonDelivery(t *testing.T, ack amqp.Acknowledger, msgs ...any) amqp.Delivery {
	t.Helper()
	body, err := codec.JSON{}.Encode(msgs)
	require.NoError(t, err)
	return amqp.Delivery{
		Acknowledger:  ack,
		ContentType:   codec.ContentTypeJSON,
		MessageId:     "m-1",
		CorrelationId: "c-1",
		RoutingKey:    "orders.created",
		Headers:       amqp.Table{"attempt": int32(1)},
		Body:          body,
	}
}

func TestFromDelivery(t *testing.T) {
	env, err := FromDelivery(jsonDelivery(t, nil, "short line\nmore content"))
	require.NoError(t, err)

	assert.Equal(t, "short line(...)", env.Label())
	id, ok := env.Header(messages.HeaderMessageID)
	require.True(t, ok)
	assert.Equal(t, "m-1", id)
	rk, _ := env.Header(messages.HeaderRoutingKey)
	assert.Equal(t, "orders.created", rk)
	_, ok = env.Header("attempt")
	assert.False(t, ok)
	assert.Equal(t, int32(1), env.Headers["attempt"])
}

func TestFromDeliveryKeepsExplicitHeaders(t *testing.T) {
	d := jsonDelivery(t, nil, "x")
	d.Headers[messages.HeaderMessageID] = "from-table"

	env, err := FromDelivery(d)
	require.NoError(t, err)
	id, _ := env.Header(messages.HeaderMessageID)
	assert.Equal(t, "from-table", id)
}

func TestFromDeliveryUnknownContentType(t *testing.T) {
	_, err := FromDelivery(amqp.Delivery{ContentType: "text/plain", Body: []byte("hi")})
	assert.ErrorIs(t, err, codec.ErrUnknownContentType)
}

func TestConsumerHandleAcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	var got string
	c := &Consumer{
		queue:  "q",
		logger: logging.Discard(),
		handler: func(ctx context.Context, env *messages.Envelope) error {
			got = env.Label()
			return nil
		},
	}

	c.handle(context.Background(), jsonDelivery(t, ack, "a", 7))

	assert.Equal(t, "a + float64", got)
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
}

func TestConsumerHandleNacksOnHandlerError(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := &Consumer{
		queue:  "q",
		logger: logging.Discard(),
		handler: func(ctx context.Context, env *messages.Envelope) error {
			return assert.AnError
		},
	}

	c.handle(context.Background(), jsonDelivery(t, ack, "a"))

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
}

func TestConsumerHandleNacksUndecodableBody(t *testing.T) {
	ack := &fakeAcknowledger{}
	called := false
	c := &Consumer{
		queue:  "q",
		logger: logging.Discard(),
		handler: func(ctx context.Context, env *messages.Envelope) error {
			called = true
			return nil
		},
	}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, ContentType: codec.ContentTypeJSON, Body: []byte("{")})

	assert.False(t, called)
	assert.Equal(t, 1, ack.nacked)
}

func TestNewConsumerRequiresURL(t *testing.T) {
	_, err := NewConsumer("", "envelopes", "q", "#", nil, logging.Discard())
	assert.Error(t, err)
}
