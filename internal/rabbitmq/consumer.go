package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"envelope-service/internal/messages"
	"envelope-service/internal/observability"
)

// HandlerFunc processes one received envelope.
type HandlerFunc func(ctx context.Context, env *messages.Envelope) error

// Consumer reads envelopes from a queue bound to the exchange.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	handler HandlerFunc
	logger  *slog.Logger
}

// NewConsumer declares a durable queue bound to exchange with binding.
func NewConsumer(amqpURL, exchange, queue, binding string, handler HandlerFunc, logger *slog.Logger) (*Consumer, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, binding, exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, queue: queue, handler: handler, logger: logger}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("rabbitmq consuming", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ctx, span := otel.Tracer("envelope-service/rabbitmq").Start(ctx, "rabbitmq.consume")
	defer span.End()

	env, err := FromDelivery(d)
	if err != nil {
		c.logger.Error("rabbitmq delivery rejected", "queue", c.queue, "routing_key", d.RoutingKey, "error", err)
		observability.ObserveConsume(c.queue, err)
		_ = d.Nack(false, false)
		return
	}

	label := env.Label()
	span.SetAttributes(attribute.String("envelope.label", label))
	c.logger.Info("rabbitmq received", "queue", c.queue, "routing_key", d.RoutingKey, "message_id", d.MessageId, "label", label)

	err = c.handler(ctx, env)
	observability.ObserveConsume(c.queue, err)
	if err != nil {
		c.logger.Error("envelope handler failed", "queue", c.queue, "label", label, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
