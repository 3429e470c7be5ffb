// Package connectivity provides the observable online/offline signal that
// gates pushing pending changes to the remote source.
//
// Var is a settable signal used by tests, the harness and the CLI. Probe
// drives a Var from a periodic health check (Redis PING in production).
package connectivity

import "sync"

// Signal is an observable boolean: true means online.
type Signal interface {
	// Online returns the current value.
	Online() bool

	// Watch calls fn with each new value until stop is called. fn is not
	// called for the value current at registration time, and it is never
	// called while the signal holds an internal lock.
	Watch(fn func(online bool)) (stop func())
}

// Var is a settable Signal. Watchers only see transitions.
//
// Thread-safety: Var is safe for concurrent use.
type Var struct {
	mu       sync.Mutex
	online   bool
	watchers map[int]func(bool)
	next     int
}

// NewVar creates a Var with the given initial value.
func NewVar(online bool) *Var {
	return &Var{
		online:   online,
		watchers: make(map[int]func(bool)),
	}
}

// Online implements Signal.
func (v *Var) Online() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.online
}

// Set updates the value. Watchers are notified only when it changes.
func (v *Var) Set(online bool) {
	v.mu.Lock()
	if v.online == online {
		v.mu.Unlock()
		return
	}
	v.online = online
	watchers := make([]func(bool), 0, len(v.watchers))
	for _, fn := range v.watchers {
		watchers = append(watchers, fn)
	}
	v.mu.Unlock()

	for _, fn := range watchers {
		fn(online)
	}
}

// Watch implements Signal.
func (v *Var) Watch(fn func(online bool)) func() {
	v.mu.Lock()
	key := v.next
	v.next++
	v.watchers[key] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.watchers, key)
			v.mu.Unlock()
		})
	}
}

// Watchers returns the number of registered watchers.
func (v *Var) Watchers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watchers)
}

// Always is a Signal that never changes.
type Always bool

// Online implements Signal.
func (a Always) Online() bool { return bool(a) }

// Watch implements Signal. The callback is never invoked.
func (a Always) Watch(func(bool)) func() { return func() {} }
