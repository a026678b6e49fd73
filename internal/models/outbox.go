package models

import (
	"encoding/json"
	"time"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// OutboxRecord is the stored copy of an envelope handed to the transport.
type OutboxRecord struct {
	ID          int             `db:"id" json:"id"`
	MessageID   string          `db:"message_id" json:"message_id"`
	RoutingKey  string          `db:"routing_key" json:"routing_key"`
	Label       string          `db:"label" json:"label"`
	ContentType string          `db:"content_type" json:"content_type"`
	Headers     json.RawMessage `db:"headers" json:"headers"`
	Payloads    json.RawMessage `db:"payloads" json:"payloads"`
	Status      string          `db:"status" json:"status"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
}

// EnvelopeEvent is broadcast to monitor websockets.
type EnvelopeEvent struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id,omitempty"`
	RoutingKey string `json:"routing_key"`
	Label      string `json:"label"`
}
