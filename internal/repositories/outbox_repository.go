package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"envelope-service/internal/models"
)

var ErrEnvelopeNotFound = errors.New("envelope not found")

// OutboxRepository stores envelopes handed to the transport.
type OutboxRepository interface {
	Create(ctx context.Context, rec models.OutboxRecord) (models.OutboxRecord, error)
	MarkPublished(ctx context.Context, id int) error
	MarkFailed(ctx context.Context, id int, reason string) error
	GetByMessageID(ctx context.Context, messageID string) (models.OutboxRecord, error)
	ListRecent(ctx context.Context, limit int) ([]models.OutboxRecord, error)
}

// OutboxRepo is a sqlx-backed repository.
type OutboxRepo struct {
	db *sqlx.DB
}

// NewOutboxRepo constructs OutboxRepo.
func NewOutboxRepo(db *sqlx.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

const outboxColumns = `id, message_id, routing_key, label, content_type, headers, payloads, status, last_error, created_at, published_at`

// Create stores a pending record.
func (r *OutboxRepo) Create(ctx context.Context, rec models.OutboxRecord) (models.OutboxRecord, error) {
	var out models.OutboxRecord
	err := r.db.QueryRowxContext(ctx, `INSERT INTO envelope_outbox (message_id, routing_key, label, content_type, headers, payloads, status)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7)
        RETURNING `+outboxColumns,
		rec.MessageID, rec.RoutingKey, rec.Label, rec.ContentType, string(rec.Headers), string(rec.Payloads), models.OutboxStatusPending).
		StructScan(&out)
	return out, err
}

// MarkPublished flags the record as delivered to the broker.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id int) error {
	return r.setStatus(ctx, `UPDATE envelope_outbox SET status=$2, published_at=NOW(), last_error=NULL WHERE id=$1`, id, models.OutboxStatusPublished)
}

// MarkFailed records why publishing failed.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id int, reason string) error {
	return r.setStatus(ctx, `UPDATE envelope_outbox SET status=$2, last_error=$3 WHERE id=$1`, id, models.OutboxStatusFailed, reason)
}

func (r *OutboxRepo) setStatus(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEnvelopeNotFound
	}
	return nil
}

// GetByMessageID retrieves a single record.
func (r *OutboxRepo) GetByMessageID(ctx context.Context, messageID string) (models.OutboxRecord, error) {
	var rec models.OutboxRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+outboxColumns+` FROM envelope_outbox WHERE message_id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OutboxRecord{}, ErrEnvelopeNotFound
	}
	return rec, err
}

// ListRecent returns the newest records first.
func (r *OutboxRepo) ListRecent(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	var recs []models.OutboxRecord
	err := r.db.SelectContext(ctx, &recs, `SELECT `+outboxColumns+` FROM envelope_outbox ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	return recs, err
}
