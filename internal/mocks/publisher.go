package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"envelope-service/internal/messages"
	"envelope-service/internal/rabbitmq"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, env *messages.Envelope) error {
	args := m.Called(ctx, routingKey, env)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ rabbitmq.Publisher = (*PublisherMock)(nil)
