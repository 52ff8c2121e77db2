// coderloopd serves the CodeLoop Transport Front-End: the twelve MCP
// tools over streamable HTTP plus the metrics/health surface.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coderloop/coderloop/pkg/clock"
	"github.com/coderloop/coderloop/pkg/config"
	"github.com/coderloop/coderloop/pkg/database"
	"github.com/coderloop/coderloop/pkg/llmclient"
	"github.com/coderloop/coderloop/pkg/metrics"
	"github.com/coderloop/coderloop/pkg/policy"
	"github.com/coderloop/coderloop/pkg/retention"
	"github.com/coderloop/coderloop/pkg/session"
	"github.com/coderloop/coderloop/pkg/staticanalysis"
	"github.com/coderloop/coderloop/pkg/testexec"
	"github.com/coderloop/coderloop/pkg/transport"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	envFile := flag.String("env-file", getEnv("CODELOOP_ENV_FILE", ".env"), "Path to a .env file (optional)")
	mcpAddr := flag.String("mcp-addr", getEnv("CODELOOP_MCP_ADDR", ":7325"), "Address the MCP streamable-HTTP surface listens on")
	httpAddr := flag.String("http-addr", getEnv("CODELOOP_HTTP_ADDR", ":8080"), "Address the metrics/health HTTP surface listens on")
	flag.Parse()

	logger := slog.Default()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := buildStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sink, err := metrics.New()
	if err != nil {
		logger.Error("failed to initialize metrics sink", "error", err)
		os.Exit(1)
	}
	defer sink.Shutdown(context.Background())

	sweeper := retention.New(cfg.Retention, store, clock.NewSystem(), logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	registry := transport.NewClientRegistry(transport.NewScriptedClientFactory(), llmclient.NewScriptedClient())

	server := transport.NewServer(transport.Deps{
		Config:   cfg,
		Store:    store,
		Clients:  registry,
		Tests:    testexec.NewStub(),
		Analysis: staticanalysis.NewStub(),
		Clock:    clock.NewSystem(),
		Metrics:  sink,
		Policies: policy.NewRegistry(cfg.PolicyDir),
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting CodeLoop transport front-end", "mcp_addr", *mcpAddr, "http_addr", *httpAddr)
		errCh <- server.Start(*mcpAddr, *httpAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining in-flight requests")
	case err := <-errCh:
		if err != nil {
			logger.Error("transport front-end failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during graceful shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildStore selects the durable PostgreSQL-backed store when dsn is
// set and the in-memory store when dsn is empty. main always passes a
// non-empty dsn, because config.Load rejects an empty
// CODELOOP_DATABASE_URL.
func buildStore(ctx context.Context, dsn string) (session.Store, func(), error) {
	if dsn == "" {
		return session.NewInMemoryStore(), func() {}, nil
	}

	client, err := database.NewClient(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return database.NewStore(client.Pool()), func() { client.Close() }, nil
}
