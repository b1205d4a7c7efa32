package rabbit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fcg/usuarios/core"
	amqp "github.com/rabbitmq/amqp091-go"
)

type publishedMsg struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

type declaredQueue struct {
	durable    bool
	autoDelete bool
	exclusive  bool
	args       amqp.Table
}

type declaredExchange struct {
	kind       string
	durable    bool
	autoDelete bool
}

type binding struct {
	queue    string
	key      string
	exchange string
}

// in-memory broker used in place of RabbitMQ.
type fakeBroker struct {
	mu sync.Mutex

	dials        int
	failDials    int // number of upcoming dials that fail
	conn         *fakeConn
	publishCalls int
	failPublish  int // number of upcoming publishes that fail, negative means all of them

	published []publishedMsg
	exchanges map[string]declaredExchange
	queues    map[string]declaredQueue
	bindings  []binding
	consumers map[string]chan amqp.Delivery
	consumes  map[string]int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges: map[string]declaredExchange{},
		queues:    map[string]declaredQueue{},
		consumers: map[string]chan amqp.Delivery{},
		consumes:  map[string]int{},
	}
}

func (f *fakeBroker) dial(rail core.Rail, conf Config) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.failDials > 0 {
		f.failDials--
		return nil, errors.New("connection refused")
	}
	f.conn = &fakeConn{broker: f}
	return f.conn, nil
}

// Simulate the server closing the connection.
func (f *fakeBroker) dropConnection() {
	f.mu.Lock()
	c := f.conn
	f.mu.Unlock()
	if c != nil {
		c.shutdown(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED", Server: true})
	}
}

func (f *fakeBroker) setFailDials(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDials = n
}

func (f *fakeBroker) setFailPublish(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPublish = n
}

func (f *fakeBroker) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeBroker) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publishCalls
}

func (f *fakeBroker) consumeCount(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumes[queue]
}

func (f *fakeBroker) publishedMsgs() []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]publishedMsg, len(f.published))
	copy(cp, f.published)
	return cp
}

// Push delivery to the current consumer of the queue.
func (f *fakeBroker) deliver(t *testing.T, queue string, d amqp.Delivery) {
	t.Helper()
	var ch chan amqp.Delivery
	waitFor(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		ch = f.consumers[queue]
		return ch != nil
	})
	ch <- d
}

type fakeConn struct {
	broker   *fakeBroker
	closed   bool
	notify   []chan *amqp.Error
	channels []*fakeChannel
}

func (c *fakeConn) Channel() (Channel, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &fakeChannel{conn: c, broker: c.broker}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *fakeConn) shutdown(err *amqp.Error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocked()
	}
	for _, n := range c.notify {
		if err != nil {
			n <- err
		}
		close(n)
	}
}

type fakeChannel struct {
	broker     *fakeBroker
	conn       *fakeConn
	closed     bool
	deliveries []chan amqp.Delivery
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.exchanges[name] = declaredExchange{kind: kind, durable: durable, autoDelete: autoDelete}
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.queues[name] = declaredQueue{durable: durable, autoDelete: autoDelete, exclusive: exclusive, args: args}
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.bindings = append(c.broker.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if autoAck {
		return nil, errors.New("autoAck is not expected")
	}
	d := make(chan amqp.Delivery, 16)
	c.deliveries = append(c.deliveries, d)
	c.broker.consumers[queue] = d
	c.broker.consumes[queue]++
	return d, nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.publishCalls++
	if c.broker.failPublish != 0 {
		if c.broker.failPublish > 0 {
			c.broker.failPublish--
		}
		return errors.New("publish failed")
	}
	c.broker.published = append(c.broker.published, publishedMsg{exchange: exchange, routingKey: key, msg: msg})
	return nil
}

func (c *fakeChannel) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed || c.conn.closed
}

func (c *fakeChannel) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *fakeChannel) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	for _, d := range c.deliveries {
		for q, cd := range c.broker.consumers {
			if cd == d {
				delete(c.broker.consumers, q)
			}
		}
		close(d)
	}
}

type ackResult struct {
	tag     uint64
	ack     bool
	requeue bool
}

// records acknowledgements of deliveries.
type fakeAcker struct {
	results chan ackResult
}

func newFakeAcker() *fakeAcker {
	return &fakeAcker{results: make(chan ackResult, 64)}
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	if multiple {
		return errors.New("multiple is not expected")
	}
	a.results <- ackResult{tag: tag, ack: true}
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple bool, requeue bool) error {
	if multiple {
		return errors.New("multiple is not expected")
	}
	a.results <- ackResult{tag: tag, requeue: requeue}
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	a.results <- ackResult{tag: tag, requeue: requeue}
	return nil
}

func (a *fakeAcker) next(t *testing.T) ackResult {
	t.Helper()
	select {
	case r := <-a.results:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for ack/nack")
	}
	return ackResult{}
}

func (a *fakeAcker) none(t *testing.T) {
	t.Helper()
	select {
	case r := <-a.results:
		t.Fatalf("unexpected ack/nack: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func testConf() Config {
	return Config{
		Host:                    "localhost",
		Port:                    5672,
		Username:                "guest",
		Password:                "guest",
		Vhost:                   "/",
		RetryCount:              3,
		RetryDelay:              time.Millisecond,
		Qos:                     DefaultQos,
		MaxRedelivery:           5,
		DeadLetter:              true,
		ReconnectMaxAttempts:    3,
		ReconnectInitialBackoff: time.Millisecond,
		ReconnectMaxBackoff:     5 * time.Millisecond,
	}
}

func newTestBus(t *testing.T, conf Config, opts ...Option) (*RabbitBus, *fakeBroker) {
	t.Helper()
	broker := newFakeBroker()
	b, err := NewRabbitBus(core.EmptyRail(), conf, append([]Option{WithDialer(broker.dial)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, broker
}
