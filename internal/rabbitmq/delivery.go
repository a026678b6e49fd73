package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"envelope-service/internal/codec"
	"envelope-service/internal/messages"
)

// FromDelivery rebuilds an envelope from a received delivery. The body codec
// follows the delivery's content type.
func FromDelivery(d amqp.Delivery) (*messages.Envelope, error) {
	c, err := codec.ForContentType(d.ContentType)
	if err != nil {
		return nil, err
	}
	msgs, err := c.Decode(d.Body)
	if err != nil {
		return nil, err
	}

	env := messages.New(msgs...)
	for key, value := range d.Headers {
		env.Headers[key] = value
	}
	setIfMissing(env, messages.HeaderMessageID, d.MessageId)
	setIfMissing(env, messages.HeaderCorrelationID, d.CorrelationId)
	setIfMissing(env, messages.HeaderReturnAddress, d.ReplyTo)
	setIfMissing(env, messages.HeaderContentType, d.ContentType)
	setIfMissing(env, messages.HeaderRoutingKey, d.RoutingKey)
	return env, nil
}

func setIfMissing(env *messages.Envelope, key, value string) {
	if value == "" {
		return
	}
	if _, ok := env.Headers[key]; ok {
		return
	}
	env.Headers[key] = value
}
