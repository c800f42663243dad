// Command memento-ingest is the ingestion backend: it accepts the summaries
// and face embeddings posted by the capture server and stores them in
// PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/memento/internal/config"
	"github.com/MrWong99/memento/internal/health"
	"github.com/MrWong99/memento/internal/ingest"
	"github.com/MrWong99/memento/internal/observe"
)

var version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath, config.ValidateBackend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memento-ingest: %v\n", err)
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName + "-ingest",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	store, err := ingest.NewPostgresStore(ctx, cfg.Backend.PostgresDSN)
	if err != nil {
		slog.Error("failed to open item store", "err", err)
		return 1
	}
	defer store.Close()

	if cfg.Backend.Secret == "" {
		slog.Warn("backend.secret is empty; requests are accepted without a signature")
	}
	metrics := observe.DefaultMetrics()
	handler, err := ingest.NewHandler(store,
		ingest.WithSecret(cfg.Backend.Secret),
		ingest.WithMetrics(metrics),
	)
	if err != nil {
		slog.Error("failed to create ingest handler", "err", err)
		return 1
	}

	// ── HTTP ──────────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	handler.Register(mux)
	hc := health.New(health.Checker{Name: "postgres", Check: store.Ping})
	hc.Register(mux)
	hc.RegisterAliases(mux, "/health", "/_ah/health")
	if cfg.Telemetry.MetricsEnabled() {
		mux.Handle("GET /metrics", observe.MetricsHandler())
	}

	srv := &http.Server{
		Addr:              cfg.Backend.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	slog.Info("memento-ingest listening", "addr", srv.Addr, "version", version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
