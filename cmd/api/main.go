// Package main implements the condominium ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/condo-ledger/engine/ingest"
	"github.com/WessleyAI/condo-ledger/engine/rag"
	"github.com/WessleyAI/condo-ledger/pkg/config"
	"github.com/WessleyAI/condo-ledger/pkg/metrics"
	"github.com/WessleyAI/condo-ledger/pkg/mid"
	"github.com/WessleyAI/condo-ledger/pkg/natsutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	stack, err := rag.NewStack(cfg, logger, m)
	if err != nil {
		return fmt.Errorf("build stack: %w", err)
	}
	defer stack.Close()

	// --- Optional NATS: log index rebuilds done elsewhere ---
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Warn("nats unavailable, rebuild events disabled", "err", err)
		} else {
			defer nc.Drain()
			if _, err := natsutil.Subscribe(nc, ingest.CompletedSubject, func(_ context.Context, msg natsutil.Msg[ingest.Completed]) {
				rep := msg.Value.Report
				logger.Info("index rebuilt", "trigger", rep.Trigger, "chunks", rep.Chunks, "indexed", rep.Index.Indexed)
			}); err != nil {
				logger.Warn("nats subscribe failed", "err", err)
			}
		}
	}

	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled {
		metricsHandler = m.Handler()
	}
	handler := newHandler(stack.Service, metricsHandler, m, cfg.Server, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port, "store", cfg.Store.Engine, "completion", cfg.Completion.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newHandler wires routes and middleware. metricsHandler may be nil.
func newHandler(svc ledger, metricsHandler http.Handler, obs mid.Observer, cfg config.ServerConfig, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", handleQuery(svc, logger))
	mux.HandleFunc("GET /filters", handleFilters(svc, logger))
	mux.HandleFunc("GET /health", handleHealth(svc))
	mux.HandleFunc("GET /month/{month_year}", handleMonth(svc, logger))
	mux.HandleFunc("GET /category/{category}", handleCategory(svc, logger))
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("condo-ledger-api"),
		mid.CORS(cfg.CORSOrigins...),
		mid.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		mid.Observe(obs),
	)
}
