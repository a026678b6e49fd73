package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"envelope-service/internal/logging"
	"envelope-service/internal/messages"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, env *messages.Envelope) error {
	args := m.Called(ctx, routingKey, env)
	return args.Error(0)
}

func TestEmitPublishesAuditEnvelope(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.test", "envelope-service", "test", logging.Discard())

	var sent *messages.Envelope
	pub.On("Publish", mock.Anything, "audit.test", mock.AnythingOfType("*messages.Envelope")).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*messages.Envelope) }).
		Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "envelope published", "req-1")

	pub.AssertExpectations(t)
	require.NotNil(t, sent)
	require.Len(t, sent.Messages, 1)
	record, ok := sent.Messages[0].(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", record.EventType)
	assert.Equal(t, "INFO", record.Payload.Level)
	assert.Equal(t, "envelope-service/internal/telemetry.AuditEnvelope", sent.Label())

	corr, ok := sent.Header(messages.HeaderCorrelationID)
	require.True(t, ok)
	assert.Equal(t, "req-1", corr)
	id, ok := sent.Header(messages.HeaderMessageID)
	require.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.test", "svc", "test", logging.Discard())
	pub.On("Publish", mock.Anything, "audit.test", mock.Anything).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "ERROR", "boom", "")
	})
	pub.AssertExpectations(t)
}

func TestEmitOnNilEmitter(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "noop", "")
	})
}

func TestEnvelopeWithoutRequestID(t *testing.T) {
	emitter := NewAuditEmitter(nil, "audit.test", "svc", "test", logging.Discard())
	env := emitter.Envelope("WARN", "text", "")

	_, ok := env.Header(messages.HeaderCorrelationID)
	assert.False(t, ok)
	level, _ := env.Header(HeaderAuditLevel)
	assert.Equal(t, "WARN", level)
}
