// Package application contains use-case orchestration services.
package application

import (
	"log/slog"
	"sync"
)

// ConnectivityMonitor owns the process-wide online/offline flag. It has two
// writers: network interface events and outcome-based overrides from remote
// calls. Every write is equality gated, so subscribers and the log only see
// actual transitions.
type ConnectivityMonitor struct {
	mu          sync.Mutex
	online      bool
	nextID      int
	subscribers map[int]func(online bool)
}

// NewConnectivityMonitor creates a monitor with the given initial state.
func NewConnectivityMonitor(online bool) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		online:      online,
		subscribers: make(map[int]func(bool)),
	}
}

// Online returns the current connectivity state.
func (m *ConnectivityMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// MarkOnline records a successful remote call.
func (m *ConnectivityMonitor) MarkOnline() {
	m.set(true, "outcome")
}

// MarkOffline records a remote call that failed for connectivity reasons.
func (m *ConnectivityMonitor) MarkOffline() {
	m.set(false, "outcome")
}

// InterfaceUp records a network interface coming up. Interface events
// override the outcome-based state.
func (m *ConnectivityMonitor) InterfaceUp() {
	m.set(true, "interface")
}

// InterfaceDown records the last network interface going down.
func (m *ConnectivityMonitor) InterfaceDown() {
	m.set(false, "interface")
}

// Subscribe registers fn to be called after every transition. Callbacks run
// outside the monitor's lock on the writer's goroutine. The returned function
// removes the subscription.
func (m *ConnectivityMonitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

func (m *ConnectivityMonitor) set(online bool, source string) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if online {
		slog.Info("connectivity restored", "source", source)
	} else {
		slog.Info("connectivity lost", "source", source)
	}

	for _, fn := range subs {
		fn(online)
	}
}
