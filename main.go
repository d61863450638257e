package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/xiaot623/kanban/internal/adapter/gateway"
	"github.com/xiaot623/kanban/internal/config"
	"github.com/xiaot623/kanban/internal/hub"
	"github.com/xiaot623/kanban/internal/logger"
	"github.com/xiaot623/kanban/internal/repository"
	"github.com/xiaot623/kanban/internal/service"
	httpserver "github.com/xiaot623/kanban/internal/transport/http"
	"github.com/xiaot623/kanban/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(os.Stdout, logger.Options{Level: cfg.LogLevel, JSON: cfg.IsProduction()})

	slog.Info("starting kanban backend",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"database", cfg.DatabaseURL,
		"gateway_url", cfg.Gateway.URL,
		"gateway_enabled", cfg.Gateway.Token != "",
	)

	// Initialize store
	if err := ensureDataDir(cfg.DatabaseURL); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize pickup policy
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PickupPolicyPath)
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	// Initialize gateway client
	gw := gateway.NewClient(gateway.Config{
		URL:             cfg.Gateway.URL,
		Token:           cfg.Gateway.Token,
		AgentsTimeout:   cfg.Gateway.AgentsTimeout,
		HealthTimeout:   cfg.Gateway.HealthTimeout,
		SpawnTimeout:    cfg.Gateway.SpawnTimeout,
		SendTimeout:     cfg.Gateway.SendTimeout,
		SendWaitSeconds: cfg.Gateway.SendWaitSeconds,
		CacheTTL:        cfg.Gateway.AgentCacheTTL,
	})

	// Start realtime hub
	h := hub.NewHub(cfg.WS.SendBuffer)
	go h.Run(ctx)

	svc := service.New(db, gw, policyEngine, h, cfg)
	e := httpserver.NewServer(cfg, svc, h)

	go func() {
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("api started", "addr", cfg.Addr())

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down kanban backend")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("failed to shutdown server gracefully", "error", err)
	}
	cancel()

	slog.Info("kanban backend stopped")
}

// ensureDataDir creates the parent directory of a file database.
func ensureDataDir(dsn string) error {
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
