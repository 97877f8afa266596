// mcphub is a protocol-aware aggregator that fronts many MCP servers under
// a single endpoint and synthesises MCP tools from declarative REST API
// descriptions.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/mcphub/internal/hublog"
	"github.com/codeready-toolchain/mcphub/pkg/audit"
	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/frontend"
	"github.com/codeready-toolchain/mcphub/pkg/hub"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 normal, 1 fatal init failure,
// 2 config invalid.
func run() int {
	configDir := flag.String("config-dir", getEnv("CONFIG_PATH", "./deploy/config"), "path to configuration directory")
	addr := flag.String("addr", ":"+getEnv("HTTP_PORT", "8080"), "address the protocol front-end listens on")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}

	if err := hublog.Init(getEnv("LOG_LEVEL", "INFO"), os.Getenv("LOG_FILE")); err != nil {
		slog.Error("failed to initialise logging", "error", err)
		return 1
	}

	slog.Info("starting mcphub", "config_dir", *configDir, "addr", *addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		return 2
	}
	for _, w := range cfg.Warnings {
		slog.Warn("configuration warning", "warning", w)
	}

	h := hub.New(cfg)

	if auditCfg, ok := audit.LoadConfigFromEnv(); ok {
		auditClient, err := audit.NewClient(ctx, auditCfg)
		if err != nil {
			slog.Error("failed to connect to audit database, continuing without persisted audit", "error", err)
		} else {
			defer auditClient.Close()
			h.SetSecuritySink(auditClient.SecuritySink())
			h.SetTraceSink(auditClient.TraceSink())
			slog.Info("persisted audit enabled")
		}
	} else {
		slog.Info("DATABASE_URL not set, running with log-only audit")
	}

	if err := h.Start(ctx); err != nil {
		slog.Error("hub failed to start", "error", err)
		return 1
	}

	front := frontend.New(h)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- front.Serve(ctx, *addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("front-end server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		slog.Error("hub shutdown reported errors", "error", err)
	}

	return 0
}
