package rabbit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/util/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Topic exchange shared by all integration events.
	ExchangeName = "fcg_events"

	// Exchange receiving messages that exceeded the redelivery cap.
	DeadLetterExchangeName = ExchangeName + ".dlx"

	// Default QOS
	DefaultQos = 68
)

// Connection to the broker, *amqp.Connection is wrapped by Dial.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Channel methods used by the bus, implemented by *amqp.Channel.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Dialer establishes new connection to the broker.
type Dialer func(rail core.Rail, conf Config) (Connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Dial RabbitMQ using amqp091-go.
func Dial(rail core.Rail, conf Config) (Connection, error) {
	c := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": conf.ConnectionName,
		},
	}
	rail.Infof("Establish connection to RabbitMQ: '%v'", conf)
	cn, err := amqp.DialConfig(conf.DialUrl(), c)
	if err != nil {
		return nil, err
	}
	return amqpConnection{cn}, nil
}

type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Owns the only connection and channel shared by publisher and consumers.
//
// Every operation on the channel goes through withChannel, which holds mu and reinitializes
// the connection (with bounded exponential backoff) when it's found closed.
type connManager struct {
	mu    sync.Mutex
	conf  Config
	dial  Dialer
	state ConnState
	conn  Connection
	ch    Channel
	gen   uint64 // incremented on every successful (re)initialization

	ctx    context.Context // cancelled on close, interrupts backoff
	cancel context.CancelFunc
}

func newConnManager(conf Config, dial Dialer) *connManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &connManager{
		conf:   conf,
		dial:   dial,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Establish the initial connection, only one attempt is made.
func (m *connManager) connect(rail core.Rail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return ErrBusClosed
	}
	m.state = StateConnecting
	if err := m.initLocked(rail); err != nil {
		m.state = StateDisconnected
		return ErrConnectFailed.Wrap(err)
	}
	return nil
}

func (m *connManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *connManager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOpenLocked()
}

func (m *connManager) isOpenLocked() bool {
	return m.state == StateConnected && m.conn != nil && !m.conn.IsClosed() && m.ch != nil && !m.ch.IsClosed()
}

// Make sure the connection and channel are open, reconnecting synchronously if necessary.
func (m *connManager) EnsureOpen(rail core.Rail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureOpenLocked(rail)
}

func (m *connManager) ensureOpenLocked(rail core.Rail) error {
	if m.state == StateClosed {
		return ErrBusClosed
	}
	if m.isOpenLocked() {
		return nil
	}

	m.state = StateConnecting
	backoff := retry.ExponentialBackoff(m.conf.ReconnectInitialBackoff, m.conf.ReconnectMaxBackoff, m.conf.ReconnectMaxAttempts-1)
	err := retry.CallWithBackoffCtx(m.ctx, backoff, func(attempt int) error {
		if attempt > 0 {
			rail.Infof("Reconnecting to RabbitMQ, attempt: %d", attempt+1)
		}
		err := m.initLocked(rail)
		if err != nil {
			rail.Warnf("Failed to initialize RabbitMQ connection, %v", err)
		}
		return err
	})
	if err != nil {
		if m.ctx.Err() != nil {
			return ErrBusClosed
		}
		m.state = StateDisconnected
		return ErrConnectFailed.Wrap(err)
	}
	return nil
}

// Open connection (if necessary) and channel, then declare exchanges.
func (m *connManager) initLocked(rail core.Rail) error {
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}

	if m.conn == nil || m.conn.IsClosed() {
		conn, err := m.dial(rail, m.conf)
		if err != nil {
			return core.WrapErrf(err, "failed to connect RabbitMQ server")
		}
		m.conn = conn
		m.watchClose(conn)
	}

	ch, err := m.conn.Channel()
	if err != nil {
		return core.WrapErrf(err, "failed to open RabbitMQ channel")
	}
	if err := m.declareExchanges(rail, ch); err != nil {
		_ = ch.Close()
		return err
	}
	if m.conf.Qos > 0 {
		if err := ch.Qos(m.conf.Qos, 0, false); err != nil {
			_ = ch.Close()
			return core.WrapErrf(err, "failed to set channel qos")
		}
	}

	m.ch = ch
	m.gen++
	m.state = StateConnected
	rail.Infof("RabbitMQ channel initialized, generation: %d", m.gen)
	return nil
}

func (m *connManager) declareExchanges(rail core.Rail, ch Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return core.WrapErrf(err, "failed to declare exchange, %v", ExchangeName)
	}
	rail.Debugf("Declared %s exchange '%s'", amqp.ExchangeTopic, ExchangeName)

	if m.conf.DeadLetter {
		if err := ch.ExchangeDeclare(DeadLetterExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return core.WrapErrf(err, "failed to declare exchange, %v", DeadLetterExchangeName)
		}
		rail.Debugf("Declared %s exchange '%s'", amqp.ExchangeDirect, DeadLetterExchangeName)
	}
	return nil
}

// Flip the state to disconnected once the connection is closed by the server.
func (m *connManager) watchClose(conn Connection) {
	notifyCloseChan := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		err, ok := <-notifyCloseChan
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == StateClosed || m.conn != conn {
			return
		}
		m.state = StateDisconnected
		if ok && err != nil {
			core.Warnf("RabbitMQ connection closed, %v", err)
		} else {
			core.Infof("RabbitMQ connection closed")
		}
	}()
}

// Run f with the shared channel, f must not call back into the manager.
func (m *connManager) withChannel(rail core.Rail, f func(ch Channel) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpenLocked(rail); err != nil {
		return err
	}
	err := f(m.ch)
	if err != nil && (m.ch.IsClosed() || m.conn.IsClosed()) {
		m.state = StateDisconnected
	}
	return err
}

// Close channel and connection, pending backoff is interrupted.
func (m *connManager) Close() error {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return nil
	}
	m.state = StateClosed

	var errs []error
	if m.ch != nil && !m.ch.IsClosed() {
		errs = append(errs, m.ch.Close())
	}
	if m.conn != nil && !m.conn.IsClosed() {
		errs = append(errs, m.conn.Close())
	}
	m.ch = nil
	m.conn = nil
	return errors.Join(errs...)
}

func (m *connManager) isClosed() bool {
	return m.ctx.Err() != nil
}
