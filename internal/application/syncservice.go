package application

import (
	"context"
	"log/slog"
	"time"
)

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	done chan error
}

// SyncService reconciles the view with the remote host after connectivity
// returns. While offline it periodically probes the auth status through
// GetOrFetch, whose success is what flips the monitor back online. Every
// offline to online transition, from a probe, another read or an interface
// event, refreshes the selected pull request.
type SyncService struct {
	reads      *ReadService
	dispatcher *Dispatcher
	monitor    *ConnectivityMonitor
	interval   time.Duration
	refreshCh  chan refreshRequest
	reconnect  chan struct{}
}

// NewSyncService creates a SyncService probing every interval while offline.
func NewSyncService(reads *ReadService, dispatcher *Dispatcher, interval time.Duration) *SyncService {
	return &SyncService{
		reads:      reads,
		dispatcher: dispatcher,
		monitor:    reads.Monitor(),
		interval:   interval,
		refreshCh:  make(chan refreshRequest),
		reconnect:  make(chan struct{}, 1),
	}
}

// Start runs the reconnect loop. It probes once immediately, then on the
// configured interval while offline. It also listens for manual refresh
// requests. Start blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	unsubscribe := s.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		select {
		case s.reconnect <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	s.probe(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if !s.monitor.Online() {
				s.probe(ctx)
			}
		case <-s.reconnect:
			slog.Info("reconnected, refreshing selection")
			if err := s.dispatcher.Refresh(ctx); err != nil {
				slog.Error("refresh after reconnect failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.dispatcher.Refresh(ctx)
		}
	}
}

// Refresh triggers a manual refresh of the selected pull request through the
// loop. It blocks until the refresh completes or the context is canceled.
func (s *SyncService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)
	req := refreshRequest{done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// probe reads the auth status, updating the viewer when the host answers.
func (s *SyncService) probe(ctx context.Context) {
	res, err := s.reads.AuthStatus(ctx)
	if err != nil {
		slog.Debug("auth probe failed", "error", err)
		return
	}
	if !res.FromCache && res.Value.Authenticated && res.Value.Login != "" {
		s.dispatcher.SetViewer(res.Value.Login)
	}
}
