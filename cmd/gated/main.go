package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wifeyapp/appgate/internal/api"
	"github.com/wifeyapp/appgate/internal/cache"
	"github.com/wifeyapp/appgate/internal/config"
	"github.com/wifeyapp/appgate/internal/gate"
	"github.com/wifeyapp/appgate/internal/logging"
	"github.com/wifeyapp/appgate/internal/purchases"
	"github.com/wifeyapp/appgate/internal/remote"
	"github.com/wifeyapp/appgate/internal/session"
	"github.com/wifeyapp/appgate/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	log := logging.NewSlogLogger(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, db, err := storage.Open(ctx, cfg.CacheDSN)
	if err != nil {
		slog.Error("failed to open local cache", "dsn", cfg.CacheDSN, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userCache := cache.New(store)
	client := remote.NewHTTPClient(cfg.ServerBaseURL, cfg.FetchTimeout)
	sessions := session.NewStore()
	flags := gate.NewFlags()

	resolver := gate.NewResolver(userCache, client, flags, log, nil)
	supervisor := gate.NewSupervisor(gate.Deps{
		Cache:    userCache,
		Client:   client,
		Flags:    flags,
		Sessions: sessions,
		Binder:   purchases.NewRebindableBinder(purchases.NopBinder{}),
		Log:      log,
	})

	go supervisor.Run(ctx, cfg.CheckInterval)

	router := api.NewRouter(api.RouterDeps{
		Resolver:   resolver,
		Supervisor: supervisor,
		Cache:      userCache,
		Sessions:   sessions,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting gate daemon", "addr", cfg.ListenAddr, "server", cfg.ServerBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("gate daemon stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
