package rabbit

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/encoding/json"
	"github.com/fcg/usuarios/event"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cast"
)

const (
	// Delivery count header maintained by quorum queues.
	HeaderDeliveryCount = "x-delivery-count"

	// Max number of messages whose failures are tracked in memory.
	maxTrackedFailures = 10_000

	// Metric label of deliveries whose routing key has no handler.
	unknownEventLabel = "unknown"
)

// Handler of event T.
type Handler[T event.Event] interface {
	Handle(sc *Scope, evt T) error
}

type HandlerFunc[T event.Event] func(sc *Scope, evt T) error

func (f HandlerFunc[T]) Handle(sc *Scope, evt T) error {
	return f(sc, evt)
}

// Name of the queue consumed for the event.
func QueueName(eventName string) string {
	return eventName + "_queue"
}

// Name of the queue collecting dead-lettered messages of the event.
func DeadLetterQueueName(eventName string) string {
	return QueueName(eventName) + ".dlq"
}

/*
Subscribe to event T.

The handler is resolved from the factory for every delivered message using that message's Scope. The queue
'<EventName>_queue' is declared and bound to the exchange with routing key '<EventName>', then a delivery
loop is started in a new goroutine.

Subscribing the same event again replaces the handler, the existing delivery loop is reused.

T must be a value type, its zero value is used to resolve the event name.
*/
func Subscribe[T event.Event](rail core.Rail, b *RabbitBus, factory func(sc *Scope) Handler[T]) error {
	if k := reflect.TypeFor[T]().Kind(); k != reflect.Struct {
		return core.ErrIllegalArgument.WithInternalMsg("event type %v is a %v, expected a struct value type", reflect.TypeFor[T](), k)
	}
	var zero T
	name := zero.EventName()
	if factory == nil {
		return core.ErrIllegalArgument.WithInternalMsg("handler factory of event %v is nil", name)
	}

	replaced := b.registry.register(name, func(sc *Scope, payload []byte) error {
		evt, err := json.ParseJsonAs[T](payload)
		if err != nil {
			return core.WrapErrf(err, "failed to decode event %v", name)
		}
		h := factory(sc)
		if h == nil {
			return core.NewErrf("handler factory of event %v returned nil", name)
		}
		return h.Handle(sc, evt)
	})
	if replaced {
		rail.Infof("Handler of event '%v' replaced", name)
	}
	return b.startConsuming(rail, name)
}

// Subscribe to event T with a stateless handler func.
func SubscribeFunc[T event.Event](rail core.Rail, b *RabbitBus, f func(sc *Scope, evt T) error) error {
	h := HandlerFunc[T](f)
	return Subscribe[T](rail, b, func(sc *Scope) Handler[T] { return h })
}

// Start the delivery loop of the event, it's a noop if the loop is already running.
func (b *RabbitBus) startConsuming(rail core.Rail, eventName string) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	if _, ok := b.consuming[eventName]; ok {
		return nil
	}

	deliveries, err := b.declareAndConsume(rail, eventName)
	if err != nil {
		return err
	}
	b.consuming[eventName] = struct{}{}
	go b.consumeLoop(eventName, deliveries)
	rail.Infof("Subscribed to event '%v', queue: '%v'", eventName, QueueName(eventName))
	return nil
}

// Declare queue and binding, then start consuming the queue with manual ack.
func (b *RabbitBus) declareAndConsume(rail core.Rail, eventName string) (<-chan amqp.Delivery, error) {
	qname := QueueName(eventName)
	var deliveries <-chan amqp.Delivery

	err := b.conn.withChannel(rail, func(ch Channel) error {
		var args amqp.Table
		if b.conf.DeadLetter {
			dlq := DeadLetterQueueName(eventName)
			if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
				return core.WrapErrf(err, "failed to declare queue, %v", dlq)
			}
			if err := ch.QueueBind(dlq, eventName, DeadLetterExchangeName, false, nil); err != nil {
				return core.WrapErrf(err, "failed to declare binding, queue: %v, routingKey: %v, exchange: %v", dlq, eventName, DeadLetterExchangeName)
			}
			rail.Debugf("Declared dead letter queue '%s'", dlq)
			args = amqp.Table{
				"x-dead-letter-exchange":    DeadLetterExchangeName,
				"x-dead-letter-routing-key": eventName,
			}
		}

		if _, err := ch.QueueDeclare(qname, true, false, false, false, args); err != nil {
			return core.WrapErrf(err, "failed to declare queue, %v", qname)
		}
		rail.Debugf("Declared queue '%s'", qname)

		if err := ch.QueueBind(qname, eventName, ExchangeName, false, nil); err != nil {
			return core.WrapErrf(err, "failed to declare binding, queue: %v, routingKey: %v, exchange: %v", qname, eventName, ExchangeName)
		}
		rail.Debugf("Declared binding for queue '%s' to exchange '%s' using routingKey '%s'", qname, ExchangeName, eventName)

		d, err := ch.Consume(qname, "", false, false, false, false, nil)
		if err != nil {
			return core.WrapErrf(err, "failed to listen to '%s'", qname)
		}
		deliveries = d
		return nil
	})
	return deliveries, err
}

// Drain deliveries, resubscribe when the stream is closed until the bus is closed.
func (b *RabbitBus) consumeLoop(eventName string, deliveries <-chan amqp.Delivery) {
	rail := core.EmptyRail()
	name := fmt.Sprintf("Listener [%v]", QueueName(eventName))
	rail.Debugf("%v started", name)
	defer rail.Debugf("%v stopped", name)

	for {
		for d := range deliveries {
			b.dispatch(d)
		}
		if b.conn.isClosed() {
			return
		}

		rail.Warnf("%v delivery stream closed, resubscribing", name)
		for {
			var err error
			deliveries, err = b.declareAndConsume(rail, eventName)
			if err == nil {
				break
			}
			if b.conn.isClosed() {
				return
			}
			rail.Errorf("%v failed to resubscribe, retry in %v, %v", name, b.conf.ReconnectMaxBackoff, err)
			select {
			case <-b.conn.ctx.Done():
				return
			case <-time.After(b.conf.ReconnectMaxBackoff):
			}
		}
		rail.Infof("%v resubscribed", name)
	}
}

// Build rail of the delivery, trace is read from headers and each delivery gets its own span.
func deliveryRail(d amqp.Delivery) core.Rail {
	rail := core.EmptyRail()
	if d.Headers != nil {
		core.UsePropagationKeys(func(k string) {
			if hv, ok := d.Headers[k]; ok {
				rail = rail.WithCtxVal(k, fmt.Sprintf("%v", hv))
			}
		})
	}
	return rail.NextSpan()
}

// Key used to count failures of the delivery.
func failureKey(d amqp.Delivery) string {
	if d.MessageId != "" {
		return d.RoutingKey + ":" + d.MessageId
	}
	h := fnv.New64a()
	_, _ = h.Write(d.Body)
	return fmt.Sprintf("%v:%x", d.RoutingKey, h.Sum64())
}

// Handle a single delivery, the delivery is always either acked or nacked.
func (b *RabbitBus) dispatch(d amqp.Delivery) {
	rail := deliveryRail(d)
	eventName := d.RoutingKey

	f, ok := b.registry.lookup(eventName)
	if !ok {
		rail.Warnf("No handler registered for event '%v', message '%v' dropped", eventName, d.MessageId)
		rail.ErrorIf(d.Ack(false), "failed to ack message %v", d.MessageId)
		countEvent(unknownEventLabel, outcomeDropped)
		return
	}

	if b.dedup != nil && d.MessageId != "" {
		seen, err := b.dedup.Seen(rail, eventName, d.MessageId)
		if err != nil {
			rail.Warnf("Failed to check whether message '%v' was processed, %v", d.MessageId, err)
		} else if seen {
			rail.Infof("Message '%v' of event '%v' was already processed, skipped", d.MessageId, eventName)
			rail.ErrorIf(d.Ack(false), "failed to ack message %v", d.MessageId)
			countEvent(eventName, outcomeDuplicated)
			return
		}
	}

	key := failureKey(d)
	sc := NewScope(rail, b, DeliveryInfo{
		MessageId:   d.MessageId,
		EventName:   eventName,
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		Redelivered: d.Redelivered,
		Timestamp:   d.Timestamp,
		Failures:    b.failures.get(key),
	})

	start := time.Now()
	err := invokeSafe(sc, f, d.Body)
	handleDuration.WithLabelValues(eventName).Observe(time.Since(start).Seconds())

	if err == nil {
		if b.dedup != nil && d.MessageId != "" {
			rail.WarnIf(b.dedup.Mark(rail, eventName, d.MessageId), "failed to mark message %v processed", d.MessageId)
		}
		b.failures.forget(key)
		rail.ErrorIf(d.Ack(false), "failed to ack message %v", d.MessageId)
		countEvent(eventName, outcomeAcked)
		return
	}

	failures := b.failures.fail(key)
	if dc, ok := d.Headers[HeaderDeliveryCount]; ok {
		if n := cast.ToInt(dc) + 1; n > failures {
			failures = n
		}
	}
	rail.Errorf("Failed to handle event '%v', queue: '%v', messageId: '%v', failures: %d, %v",
		eventName, QueueName(eventName), d.MessageId, failures, err)

	if b.conf.MaxRedelivery >= 0 && failures > b.conf.MaxRedelivery {
		b.failures.forget(key)
		rail.ErrorIf(d.Nack(false, false), "failed to nack message %v", d.MessageId)
		countEvent(eventName, outcomeDeadLettered)
		if b.conf.DeadLetter {
			rail.Warnf("Message '%v' exceeded max redelivery (%d), routed to '%v'", d.MessageId, b.conf.MaxRedelivery, DeadLetterQueueName(eventName))
		} else {
			rail.Warnf("Message '%v' exceeded max redelivery (%d), dropped", d.MessageId, b.conf.MaxRedelivery)
		}
		return
	}

	rail.ErrorIf(d.Nack(false, true), "failed to nack message %v", d.MessageId)
	countEvent(eventName, outcomeNacked)
	rail.Debugf("Nacked message: %v", d.MessageId)
}

// Invoke dispatchFunc, panic is recovered as error, scope is always closed.
func invokeSafe(sc *Scope, f dispatchFunc, payload []byte) (err error) {
	defer sc.close()
	defer func() {
		if v := recover(); v != nil {
			sc.Rail.Errorf("panic recovered, %v\n%v", v, core.UnsafeByt2Str(debug.Stack()))
			err = core.NewErrf("handler panic recovered, %v", v)
		}
	}()
	return f(sc, payload)
}

// Failed attempts per message, entries are removed once the message is acked or dead-lettered.
type failureTracker struct {
	mu       sync.Mutex
	failures map[string]int
}

func newFailureTracker() *failureTracker {
	return &failureTracker{failures: map[string]int{}}
}

func (t *failureTracker) fail(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.failures) >= maxTrackedFailures {
		clear(t.failures)
	}
	t.failures[key]++
	return t.failures[key]
}

func (t *failureTracker) get(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[key]
}

func (t *failureTracker) forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, key)
}
