package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/giteval/internal/adapters/http/api"
	"github.com/okian/giteval/internal/adapters/notify"
	"github.com/okian/giteval/internal/adapters/platform"
	"github.com/okian/giteval/internal/adapters/repository"
	"github.com/okian/giteval/internal/adapters/roles"
	"github.com/okian/giteval/internal/app"
	"github.com/okian/giteval/internal/config"
	"github.com/okian/giteval/internal/domain/dedupe"
	"github.com/okian/giteval/internal/domain/rank"
	"github.com/okian/giteval/internal/domain/signature"
	"github.com/okian/giteval/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	logger.Init()
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	table := rank.Default()

	store, err := openStore(cfg, table)
	if err != nil {
		log.Error(ctx, "failed to open user store", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	verifier, err := signature.NewVerifier(cfg.WebhookSecret)
	if err != nil {
		log.Error(ctx, "failed to build webhook verifier", logger.Error(err))
		os.Exit(1)
	}
	auth, err := api.NewAuthenticator(cfg.AdminTokenSecret)
	if err != nil {
		log.Error(ctx, "failed to build admin authenticator", logger.Error(err))
		os.Exit(1)
	}

	// The concrete chat-platform client is wired here; the in-memory
	// client backs local runs without a platform connection.
	client := platform.NewInMemoryClient()
	if cfg.NotificationChannel != "" {
		client.AddChannel(cfg.NotificationChannel)
	}

	dispatcher := notify.NewDispatcher(client, cfg.NotificationChannel,
		notify.WithQueueSize(cfg.AnnounceQueueSize),
		notify.WithWorkerCount(cfg.AnnounceWorkers),
	)
	svc := app.New(store, table, client, dispatcher,
		app.WithReconciler(roles.NewReconciler(client, table, roles.WithNamePrefix(cfg.RoleNamePrefix))),
		app.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))),
		app.WithLogger(log.Named("app")),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	api.NewServer(svc, verifier, auth,
		api.WithSignatureHeader(cfg.SignatureHeader),
	).Register(mux)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", logger.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server failed", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "graceful shutdown failed", logger.Error(err))
	}
}

func openStore(cfg *config.Config, table *rank.Table) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendSQLite:
		return repository.NewSQLiteStore(cfg.StorePath, table)
	default:
		return repository.NewFileStore(cfg.StorePath, table)
	}
}
