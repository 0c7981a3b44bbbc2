// Package netwatch observes the host's network interfaces and reports
// availability changes to the connectivity monitor.
package netwatch

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Notifier receives interface availability events.
type Notifier interface {
	InterfaceUp()
	InterfaceDown()
}

// Watcher polls the interface table on a fixed interval. It only reports
// transitions; the first observation is reported only when no interface is up.
type Watcher struct {
	notifier Notifier
	interval time.Duration
	probe    func() (bool, error)
	logger   *slog.Logger

	known bool
	up    bool
}

// NewWatcher creates a Watcher that feeds notifier every interval.
func NewWatcher(notifier Notifier, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		notifier: notifier,
		interval: interval,
		probe:    hasUsableInterface,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("network watcher started", "interval", w.interval)

	w.check()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("network watcher stopped")
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	up, err := w.probe()
	if err != nil {
		w.logger.Warn("listing network interfaces failed", "error", err)
		return
	}

	first := !w.known
	changed := w.known && up != w.up
	w.known = true
	w.up = up

	switch {
	case first && !up:
		w.notifier.InterfaceDown()
	case changed && up:
		w.logger.Debug("network interface came up")
		w.notifier.InterfaceUp()
	case changed:
		w.logger.Debug("all network interfaces down")
		w.notifier.InterfaceDown()
	}
}

// hasUsableInterface reports whether any non-loopback interface is up and
// has at least one address assigned.
func hasUsableInterface() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return true, nil
	}

	return false, nil
}
