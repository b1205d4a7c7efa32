package rabbit

import (
	"sort"
	"sync"
)

// Decodes the payload and invokes the handler resolved from the scope.
type dispatchFunc func(sc *Scope, payload []byte) error

// Event name to dispatchFunc, at most one entry per event name.
type registry struct {
	mu      sync.RWMutex
	entries map[string]dispatchFunc
}

func newRegistry() *registry {
	return &registry{entries: map[string]dispatchFunc{}}
}

// Register dispatchFunc for the event, previous entry is replaced.
func (r *registry) register(eventName string, f dispatchFunc) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced = r.entries[eventName]
	r.entries[eventName] = f
	return replaced
}

func (r *registry) lookup(eventName string) (dispatchFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.entries[eventName]
	return f, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := make([]string, 0, len(r.entries))
	for k := range r.entries {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}
