// Package app wires the Memento capture server together.
//
// The App struct owns the full lifecycle: New builds the summarizer, the
// result sinks and the wearable bridge from the config, Run serves HTTP until
// the context ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSink,
// WithEmbedder, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/memento/internal/capture"
	"github.com/MrWong99/memento/internal/config"
	"github.com/MrWong99/memento/internal/face"
	"github.com/MrWong99/memento/internal/glasses"
	"github.com/MrWong99/memento/internal/health"
	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/resilience"
	"github.com/MrWong99/memento/internal/sink"
	"github.com/MrWong99/memento/internal/summary"
	"github.com/MrWong99/memento/internal/transcript/phonetic"
)

const (
	readHeaderTimeout = 10 * time.Second

	// sessionDrainTimeout bounds how long Shutdown waits for running
	// captures to be summarized and saved.
	sessionDrainTimeout = 2 * time.Minute
)

// App owns all subsystem lifetimes of the capture server.
type App struct {
	cfg       *config.Config
	providers []summary.NamedProvider

	// Subsystems, initialised in New.
	metrics    *observe.Metrics
	summarizer *summary.Client
	local      *sink.Local
	sink       capture.Sink
	embedder   face.Embedder
	glasses    *glasses.Server
	health     *health.Handler
	handler    http.Handler

	// base is the parent context of every request; cancelling it ends
	// wearable sessions.
	base       context.Context
	cancelBase context.CancelFunc

	mu     sync.Mutex
	server *http.Server

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSink replaces the local and remote sinks.
func WithSink(s capture.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithEmbedder injects a face embedder. Without it, capture.face_recognition
// selects [face.Noop].
func WithEmbedder(e face.Embedder) Option {
	return func(a *App) { a.embedder = e }
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App. providers are the summarization providers in fallback
// order, built by main from the config registry.
func New(ctx context.Context, cfg *config.Config, providers []summary.NamedProvider, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.base, a.cancelBase = context.WithCancel(context.WithoutCancel(ctx))

	// ── 1. Summarizer ────────────────────────────────────────────────────
	if err := a.initSummarizer(); err != nil {
		a.cancelBase()
		return nil, fmt.Errorf("app: init summarizer: %w", err)
	}

	// ── 2. Sinks ─────────────────────────────────────────────────────────
	if err := a.initSinks(); err != nil {
		a.cancelBase()
		return nil, fmt.Errorf("app: init sinks: %w", err)
	}

	// ── 3. Wearable bridge ───────────────────────────────────────────────
	if err := a.initGlasses(); err != nil {
		a.cancelBase()
		return nil, fmt.Errorf("app: init glasses: %w", err)
	}

	// ── 4. HTTP routes ───────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initSummarizer() error {
	sc := a.cfg.Summarizer
	opts := []summary.Option{
		summary.WithMetrics(a.metrics),
		summary.WithRetry(resilience.RetryConfig{
			MaxAttempts:     sc.MaxAttempts,
			InitialInterval: sc.InitialBackoff,
		}),
		summary.WithCallTimeout(sc.Timeout),
		summary.WithBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("provider circuit breaker changed state", "provider", name, "from", from, "to", to)
			},
		}),
	}
	if sc.Temperature != nil {
		opts = append(opts, summary.WithTemperature(*sc.Temperature))
	}
	c, err := summary.New(a.providers, opts...)
	if err != nil {
		return err
	}
	a.summarizer = c
	return nil
}

func (a *App) initSinks() error {
	if a.sink != nil {
		return nil
	}
	sc := a.cfg.Sink

	local, err := sink.NewLocal(sc.OutputDir)
	if err != nil {
		return err
	}
	a.local = local

	var remote *sink.Remote
	if sc.Ingest.URL != "" {
		remote, err = sink.NewRemote(sc.Ingest.URL,
			sink.WithSecret(sc.Ingest.Secret),
			sink.WithTargetID(sc.TargetID),
			sink.WithRemoteTimeout(sc.Ingest.Timeout),
		)
		if err != nil {
			return err
		}
	} else {
		slog.Info("sink.ingest.url not set; summaries are only written locally")
	}
	a.sink = sink.NewFanout(local, remote, a.metrics)
	return nil
}

func (a *App) initGlasses() error {
	cc := a.cfg.Capture

	var phraseOpts []capture.PhrasesOption
	if cc.FuzzyWake {
		phraseOpts = append(phraseOpts, capture.WithFuzzyWake(phonetic.New()))
	}
	if a.embedder == nil && cc.FaceRecognition {
		a.embedder = face.Noop{}
	}

	srv, err := glasses.NewServer(glasses.Config{
		Summarizer:     a.summarizer,
		Sink:           a.sink,
		Phrases:        capture.NewPhrases(cc.WakePhrase, phraseOpts...),
		IdleTimeout:    cc.IdleTimeout,
		Embedder:       a.embedder,
		Greetings:      glasses.NewGreetingGate(cc.GreetingCooldown),
		OriginPatterns: a.cfg.Server.AllowedOrigins,
		Metrics:        a.metrics,
	})
	if err != nil {
		return err
	}
	a.glasses = srv
	return nil
}

func (a *App) initHTTP() {
	checks := []health.Checker{
		{Name: "summarizer", Check: a.summarizer.Ready},
	}
	if a.local != nil {
		checks = append(checks, health.Checker{Name: "output_dir", Check: a.local.Writable})
	}
	a.health = health.New(checks...)

	mux := http.NewServeMux()
	a.health.Register(mux)
	a.glasses.Register(mux)
	if a.cfg.Telemetry.MetricsEnabled() {
		mux.Handle("GET /metrics", observe.MetricsHandler())
	}
	a.handler = observe.Middleware(a.metrics)(mux)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Summarizer returns the summarization client.
func (a *App) Summarizer() *summary.Client { return a.summarizer }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on server.listen_addr and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Running captures are drained by
// [App.Shutdown], not by Serve.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return a.base },
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	slog.Info("listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err := g.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting connections, ends wearable sessions and waits for
// captures that are being summarized. It respects the context deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		a.mu.Lock()
		srv := a.server
		a.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}

		// Ending the base context closes every session; each one finishes a
		// running capture before it returns.
		a.cancelBase()
		drainCtx, cancel := context.WithTimeout(ctx, sessionDrainTimeout)
		defer cancel()
		if err := a.glasses.Wait(drainCtx); err != nil {
			slog.Warn("sessions still running at shutdown", "err", err)
			shutdownErr = err
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
