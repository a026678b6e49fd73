package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"envelope-service/internal/codec"
	"envelope-service/internal/messages"
	"envelope-service/internal/observability"
)

// Publisher hands envelopes to the transport.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, env *messages.Envelope) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher or a noop publisher when AMQP is disabled.
func NewPublisher(amqpURL, exchange string, c codec.Codec, logger *slog.Logger) Publisher {
	if amqpURL == "" {
		logger.Warn("rabbitmq disabled, using noop", "reason", "empty amqp url")
		return noopPublisher{reason: "empty amqp url", logger: logger}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Warn("rabbitmq disabled, using noop", "reason", err)
		return noopPublisher{reason: err.Error(), logger: logger}
	}

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("rabbitmq disabled, using noop", "reason", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error(), logger: logger}
	}

	if err := declareExchange(ch, exchange); err != nil {
		logger.Warn("rabbitmq disabled, using noop", "reason", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error(), logger: logger}
	}

	logger.Info("rabbitmq connected", "exchange", exchange, "content_type", c.ContentType())
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, codec: c, logger: logger}
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	codec    codec.Codec
	logger   *slog.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, env *messages.Envelope) error {
	ctx, span := otel.Tracer("envelope-service/rabbitmq").Start(ctx, "rabbitmq.publish")
	defer span.End()

	label := env.Label()
	span.SetAttributes(
		attribute.String("messaging.destination.name", p.exchange),
		attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
		attribute.String("envelope.label", label),
	)

	err := p.publish(ctx, routingKey, env)
	observability.ObservePublish("amqp", len(env.Messages), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("rabbitmq publish failed", "routing_key", routingKey, "label", label, "error", err)
		return err
	}

	messageID, _ := env.Header(messages.HeaderMessageID)
	p.logger.Info("rabbitmq publish", "routing_key", routingKey, "message_id", messageID, "label", label)
	return nil
}

func (p *amqpPublisher) publish(ctx context.Context, routingKey string, env *messages.Envelope) error {
	msg, err := toPublishing(env, p.codec, p.logger)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// toPublishing encodes the envelope messages and copies the headers the AMQP
// table can carry.
func toPublishing(env *messages.Envelope, c codec.Codec, logger *slog.Logger) (amqp.Publishing, error) {
	body, err := c.Encode(env.Messages)
	if err != nil {
		return amqp.Publishing{}, err
	}

	headers := amqp.Table{}
	for key, value := range env.Headers {
		if v, ok := tableValue(value); ok {
			headers[key] = v
			continue
		}
		logger.Debug("rabbitmq header skipped", "key", key, "type", fmt.Sprintf("%T", value))
	}

	msg := amqp.Publishing{
		Headers:      headers,
		ContentType:  c.ContentType(),
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	msg.MessageId, _ = env.Header(messages.HeaderMessageID)
	msg.CorrelationId, _ = env.Header(messages.HeaderCorrelationID)
	msg.ReplyTo, _ = env.Header(messages.HeaderReturnAddress)
	return msg, nil
}

// tableValue narrows a header value to a type amqp.Table accepts.
func tableValue(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, uint8, int16, int32, int64,
		float32, float64, []byte, time.Time, amqp.Decimal:
		return v, true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return nil, false
	}
}

type noopPublisher struct {
	reason string
	logger *slog.Logger
}

func (p noopPublisher) Publish(ctx context.Context, routingKey string, env *messages.Envelope) error {
	messageID, _ := env.Header(messages.HeaderMessageID)
	p.logger.Info("rabbitmq noop publish", "routing_key", routingKey, "message_id", messageID, "label", env.Label())
	observability.ObservePublish("noop", len(env.Messages), nil)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	case *noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	switch publisher := p.(type) {
	case noopPublisher:
		return publisher.reason
	case *noopPublisher:
		return publisher.reason
	default:
		return ""
	}
}
