package application_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/reviewsync/internal/application"
)

type transitionRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *transitionRecorder) record(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, online)
}

func (r *transitionRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestConnectivityMonitor_RepeatedOverridesAreNoOps(t *testing.T) {
	m := application.NewConnectivityMonitor(true)
	rec := &transitionRecorder{}
	m.Subscribe(rec.record)

	m.MarkOnline()
	assert.Empty(t, rec.snapshot(), "online while online must not notify")

	m.MarkOffline()
	m.MarkOffline()
	assert.Equal(t, []bool{false}, rec.snapshot(), "offline while offline must not notify")
	assert.False(t, m.Online())

	m.MarkOnline()
	m.MarkOnline()
	assert.Equal(t, []bool{false, true}, rec.snapshot())
	assert.True(t, m.Online())
}

func TestConnectivityMonitor_InterfaceEventsOverrideOutcome(t *testing.T) {
	m := application.NewConnectivityMonitor(true)
	rec := &transitionRecorder{}
	m.Subscribe(rec.record)

	m.MarkOffline()
	m.InterfaceUp()
	assert.True(t, m.Online())

	m.InterfaceDown()
	assert.False(t, m.Online())

	m.InterfaceDown()
	assert.Equal(t, []bool{false, true, false}, rec.snapshot())
}

func TestConnectivityMonitor_Unsubscribe(t *testing.T) {
	m := application.NewConnectivityMonitor(false)
	rec := &transitionRecorder{}
	unsubscribe := m.Subscribe(rec.record)

	m.MarkOnline()
	unsubscribe()
	unsubscribe()
	m.MarkOffline()

	assert.Equal(t, []bool{true}, rec.snapshot())
}

func TestConnectivityMonitor_ConcurrentWriters(t *testing.T) {
	m := application.NewConnectivityMonitor(true)
	rec := &transitionRecorder{}
	m.Subscribe(rec.record)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.MarkOffline()
		}()
	}
	wg.Wait()

	assert.Equal(t, []bool{false}, rec.snapshot())
}
