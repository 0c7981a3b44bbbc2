package netwatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) InterfaceUp()   { r.record("up") }
func (r *recordingNotifier) InterfaceDown() { r.record("down") }

func (r *recordingNotifier) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func scripted(results ...bool) func() (bool, error) {
	i := 0
	return func() (bool, error) {
		v := results[i]
		if i < len(results)-1 {
			i++
		}
		return v, nil
	}
}

func TestWatcher_ReportsTransitionsOnly(t *testing.T) {
	n := &recordingNotifier{}
	w := NewWatcher(n, time.Hour, slog.Default())
	w.probe = scripted(true, true, false, false, true)

	for range 5 {
		w.check()
	}

	assert.Equal(t, []string{"down", "up"}, n.snapshot())
}

func TestWatcher_InitialDownIsReported(t *testing.T) {
	n := &recordingNotifier{}
	w := NewWatcher(n, time.Hour, slog.Default())
	w.probe = scripted(false, false)

	w.check()
	w.check()

	assert.Equal(t, []string{"down"}, n.snapshot())
}

func TestWatcher_ProbeErrorKeepsState(t *testing.T) {
	n := &recordingNotifier{}
	w := NewWatcher(n, time.Hour, slog.Default())

	calls := 0
	w.probe = func() (bool, error) {
		calls++
		if calls == 2 {
			return false, errors.New("netlink: permission denied")
		}
		return true, nil
	}

	w.check()
	w.check()
	w.check()

	assert.Empty(t, n.snapshot())
}

func TestWatcher_StartStopsOnCancel(t *testing.T) {
	n := &recordingNotifier{}
	w := NewWatcher(n, time.Millisecond, slog.Default())

	var mu sync.Mutex
	up := true
	w.probe = func() (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		return up, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	mu.Lock()
	up = false
	mu.Unlock()

	require.Eventually(t, func() bool {
		return len(n.snapshot()) > 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, "down", n.snapshot()[0])

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
