package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"envelope-service/internal/models"
	"envelope-service/internal/repositories"
)

type OutboxRepositoryMock struct {
	mock.Mock
}

func (m *OutboxRepositoryMock) Create(ctx context.Context, rec models.OutboxRecord) (models.OutboxRecord, error) {
	args := m.Called(ctx, rec)
	var out models.OutboxRecord
	if val := args.Get(0); val != nil {
		out = val.(models.OutboxRecord)
	}
	return out, args.Error(1)
}

func (m *OutboxRepositoryMock) MarkPublished(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *OutboxRepositoryMock) MarkFailed(ctx context.Context, id int, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *OutboxRepositoryMock) GetByMessageID(ctx context.Context, messageID string) (models.OutboxRecord, error) {
	args := m.Called(ctx, messageID)
	var rec models.OutboxRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.OutboxRecord)
	}
	return rec, args.Error(1)
}

func (m *OutboxRepositoryMock) ListRecent(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	var recs []models.OutboxRecord
	if val := args.Get(0); val != nil {
		recs = val.([]models.OutboxRecord)
	}
	return recs, args.Error(1)
}

var _ repositories.OutboxRepository = (*OutboxRepositoryMock)(nil)
