package rabbit

import (
	"sync"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/event"
)

const (
	ErrCodeBusClosed        = "RABBIT_BUS_CLOSED"
	ErrCodeConnectFailed    = "RABBIT_CONNECT_FAILED"
	ErrCodePublishExhausted = "RABBIT_PUBLISH_EXHAUSTED"
)

var (
	ErrBusClosed        = core.NewErrfCode(ErrCodeBusClosed, "event bus is closed")
	ErrConnectFailed    = core.NewErrfCode(ErrCodeConnectFailed, "failed to connect to RabbitMQ")
	ErrPublishExhausted = core.NewErrfCode(ErrCodePublishExhausted, "failed to publish event")
)

// EventBus publishes integration events.
//
// Transport details (exchange, queues, acknowledgement) are hidden behind it.
type EventBus interface {
	// Publish event, routing key defaults to the event name.
	Publish(rail core.Rail, evt event.Event, routingKey ...string) error
}

var _ EventBus = (*RabbitBus)(nil)

// Bus of integration events backed by RabbitMQ.
//
// A single connection and channel are shared by publisher and consumers, see Subscribe for consumption.
type RabbitBus struct {
	conf     Config
	conn     *connManager
	registry *registry
	failures *failureTracker
	dedup    Deduplicator
	dial     Dialer

	subMu     sync.Mutex
	consuming map[string]struct{}
}

type Option func(b *RabbitBus)

// Use the given Dialer instead of Dial.
func WithDialer(d Dialer) Option {
	return func(b *RabbitBus) {
		b.dial = d
	}
}

// Skip deliveries whose message id was already processed.
func WithDeduplicator(d Deduplicator) Option {
	return func(b *RabbitBus) {
		b.dedup = d
	}
}

/*
Create RabbitBus and connect to the broker.

The connection and channel are created eagerly and the topic exchange is declared, the error is returned if
the broker cannot be reached, the bus is unusable in that case.
*/
func NewRabbitBus(rail core.Rail, conf Config, opts ...Option) (*RabbitBus, error) {
	b := &RabbitBus{
		conf:      conf,
		registry:  newRegistry(),
		failures:  newFailureTracker(),
		consuming: map[string]struct{}{},
		dial:      Dial,
	}
	for _, op := range opts {
		op(b)
	}
	b.conn = newConnManager(conf, b.dial)

	if err := b.conn.connect(rail); err != nil {
		return nil, err
	}
	rail.Infof("RabbitMQ event bus connected, '%v'", conf)
	return b, nil
}

// Create RabbitBus using props, see ConfigFromProp.
func NewRabbitBusFromProp(rail core.Rail, opts ...Option) (*RabbitBus, error) {
	return NewRabbitBus(rail, ConfigFromProp(), opts...)
}

func (b *RabbitBus) Publish(rail core.Rail, evt event.Event, routingKey ...string) error {
	var rk string
	if len(routingKey) > 0 {
		rk = routingKey[0]
	}
	return b.publish(rail, evt, rk)
}

// Whether the connection and channel are open.
func (b *RabbitBus) IsOpen() bool {
	return b.conn.IsOpen()
}

func (b *RabbitBus) State() ConnState {
	return b.conn.State()
}

// Reconnect synchronously if the connection or channel is closed.
func (b *RabbitBus) EnsureOpen(rail core.Rail) error {
	return b.conn.EnsureOpen(rail)
}

// Names of events that have a handler.
func (b *RabbitBus) Subscriptions() []string {
	return b.registry.names()
}

// Close channel and connection.
//
// Delivery loops stop, handlers that are still running are not awaited.
func (b *RabbitBus) Close() error {
	return b.conn.Close()
}
