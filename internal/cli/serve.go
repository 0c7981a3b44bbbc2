package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	githubadapter "github.com/ericfisherdev/reviewsync/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/reviewsync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/reviewsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/reviewsync/internal/adapter/driving/netwatch"
	"github.com/ericfisherdev/reviewsync/internal/application"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local review API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	// 1. Load configuration, open the database and apply migrations.
	cfg, db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"config_file", cfg.Source,
		"github_username", cfg.GitHubUsername,
		"local_folder", cfg.LocalFolder,
	)

	// 2. Wire storage adapters.
	drafts := sqliteadapter.NewDraftRepo(db)
	cache := sqliteadapter.NewCacheRepo(db)

	// 3. Create the GitHub client. Without a token every remote call is
	// rejected by the host; local drafts keep working.
	ghClient := githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubUsername)
	if cfg.HasGitHubCredentials() {
		slog.Info("github client created", "username", cfg.GitHubUsername)
	} else {
		slog.Warn("no github token configured, remote reads and writes will fail")
	}

	// 4. Create the connectivity monitor and the read path.
	monitor := application.NewConnectivityMonitor(true)
	fetcher := application.NewFetcher(cache, monitor, cfg.RetryPolicy())
	reads := application.NewReadService(ghClient, fetcher)

	// 5. Create the mutation dispatcher.
	dispatcher := application.NewDispatcher(ghClient, drafts, reads, cfg.GitHubUsername)
	if cfg.LocalFolder != "" {
		dispatcher.SetLocalFolder(cfg.LocalFolder)
	}

	// 6. Start background loops: reconnect probing and interface watching.
	syncSvc := application.NewSyncService(reads, dispatcher, cfg.ReconnectInterval)
	go syncSvc.Start(ctx)

	watcher := netwatch.NewWatcher(monitor, cfg.NetwatchInterval, slog.Default())
	go watcher.Start(ctx)

	// 7. Create the HTTP handler.
	handler := httphandler.NewHandler(dispatcher, reads, syncSvc, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("reviewsync started", "listen_addr", cfg.ListenAddr, "version", version)

	// 8. Wait for a shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 9. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
