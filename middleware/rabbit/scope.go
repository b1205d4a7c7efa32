package rabbit

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/event"
)

// Metadata of the delivery being handled.
type DeliveryInfo struct {
	MessageId   string
	EventName   string
	Exchange    string
	RoutingKey  string
	Redelivered bool
	Timestamp   time.Time
	Failures    int // previous failed attempts known to the bus.
}

// Scope is the unit of work of a single delivery.
//
// A new Scope is created for every delivered message and discarded once the handler returns,
// values set on it are never shared with other deliveries.
type Scope struct {
	Rail     core.Rail
	Delivery DeliveryInfo

	bus     EventBus
	mu      sync.Mutex
	values  map[string]any
	closers []func()
}

func NewScope(rail core.Rail, bus EventBus, d DeliveryInfo) *Scope {
	return &Scope{
		Rail:     rail,
		Delivery: d,
		bus:      bus,
		values:   map[string]any{},
	}
}

// Publish event using the scope's rail, trace is propagated to the published message.
func (s *Scope) Publish(evt event.Event, routingKey ...string) error {
	return s.bus.Publish(s.Rail, evt, routingKey...)
}

func (s *Scope) Set(key string, val any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = val
}

func (s *Scope) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Register func that is invoked when the scope is discarded, in reverse order of registration.
//
// Scoped values are still visible to the closers.
func (s *Scope) OnClose(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, f)
}

func (s *Scope) close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if v := recover(); v != nil {
					s.Rail.Errorf("panic recovered in scope close hook, %v\n%s", v, debug.Stack())
				}
			}()
			closers[i]()
		}()
	}

	s.mu.Lock()
	s.values = map[string]any{}
	s.mu.Unlock()
}

// Get scoped value of type T.
func ScopeValue[T any](s *Scope, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var t T
		return t, false
	}
	t, ok := v.(T)
	return t, ok
}
