package rabbit

import (
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/encoding/json"
	"github.com/fcg/usuarios/event"
	"github.com/fcg/usuarios/util/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ContentTypeJson = "application/json"
)

// Build the amqp message of the event, trace is propagated through headers.
func newPublishing(rail core.Rail, evt event.Event, body []byte) amqp.Publishing {
	headers := amqp.Table{}
	core.UsePropagationKeys(func(key string) {
		if v := rail.CtxValStr(key); v != "" {
			headers[key] = v
		}
	})

	return amqp.Publishing{
		Headers:      headers,
		ContentType:  ContentTypeJson,
		DeliveryMode: amqp.Persistent,
		Type:         evt.EventName(),
		MessageId:    evt.EventId(),
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		Body:         body,
	}
}

// Publish the event to the shared exchange.
//
// The first failed attempt is followed by at most conf.RetryCount attempts with a fixed delay in between,
// the error of the last attempt is returned once they are all exhausted.
func (b *RabbitBus) publish(rail core.Rail, evt event.Event, routingKey string) error {
	if evt == nil {
		return core.ErrIllegalArgument.WithInternalMsg("event is nil")
	}
	if b.conn.isClosed() {
		return ErrBusClosed
	}

	name := evt.EventName()
	if core.IsBlankStr(routingKey) {
		routingKey = name
	}

	body, err := json.WriteJson(evt)
	if err != nil {
		return core.WrapErrf(err, "failed to marshal event %v", name)
	}
	msg := newPublishing(rail, evt, body)

	attempts := 0
	err = retry.CallFixedDelay(rail.Context(), b.conf.RetryCount, b.conf.RetryDelay, func(attempt int) error {
		attempts = attempt + 1
		err := b.conn.withChannel(rail, func(ch Channel) error {
			return ch.PublishWithContext(rail.Context(), ExchangeName, routingKey, false, false, msg)
		})
		if err != nil {
			rail.Warnf("Failed to publish event '%v' (%v), attempt: %d/%d, %v", name, msg.MessageId, attempt+1, b.conf.RetryCount+1, err)
		}
		return err
	})
	if err != nil {
		countEvent(name, outcomePublishFail)
		return ErrPublishExhausted.Wrap(core.WrapErrf(err, "event '%v' (%v) not published after %d attempts", name, msg.MessageId, attempts))
	}

	countEvent(name, outcomePublished)
	rail.Debugf("Published event '%v' to exchange '%v', routingKey: '%v', messageId: '%v'", name, ExchangeName, routingKey, msg.MessageId)
	return nil
}
