package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"envelope-service/internal/messages"
)

const HeaderAuditLevel = "audit-level"

type Publisher interface {
	Publish(ctx context.Context, routingKey string, env *messages.Envelope) error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *slog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version" msgpack:"schema_version"`
	EventType     string       `json:"event_type" msgpack:"event_type"`
	OccurredAt    string       `json:"occurred_at" msgpack:"occurred_at"`
	Service       string       `json:"service" msgpack:"service"`
	Environment   string       `json:"environment" msgpack:"environment"`
	RequestID     string       `json:"request_id" msgpack:"request_id"`
	Payload       AuditPayload `json:"payload" msgpack:"payload"`
}

type AuditPayload struct {
	Level string `json:"level" msgpack:"level"`
	Text  string `json:"text" msgpack:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *slog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Emit publishes one audit record wrapped in its own envelope. Failures are
// logged and never returned.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string) {
	if e == nil || e.publisher == nil {
		return
	}

	env := e.Envelope(level, text, requestID)
	e.logger.Debug("audit emit", "level", level, "request_id", requestID, "text", text, "label", env.Label())
	if err := e.publisher.Publish(ctx, e.routingKey, env); err != nil {
		e.logger.Error("audit publish failed", "request_id", requestID, "error", err)
	}
}

// Envelope builds the envelope Emit would publish.
func (e *AuditEmitter) Envelope(level, text, requestID string) *messages.Envelope {
	record := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}

	env := messages.New(record)
	env.SetHeader(messages.HeaderMessageID, uuid.NewString())
	env.SetHeader(messages.HeaderSentTime, record.OccurredAt)
	env.SetHeader(HeaderAuditLevel, level)
	if requestID != "" {
		env.SetHeader(messages.HeaderCorrelationID, requestID)
	}
	return env
}
