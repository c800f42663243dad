// Command memento is the capture server: wearables connect over WebSocket,
// conversations are summarised by an LLM and stored as contact files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/memento/internal/app"
	"github.com/MrWong99/memento/internal/config"
	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/summary"
	"github.com/MrWong99/memento/pkg/provider/llm"
	"github.com/MrWong99/memento/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/memento/pkg/provider/llm/openai"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// shutdownTimeout bounds the graceful shutdown, including captures that are
// still being summarised.
const shutdownTimeout = 2 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "memento: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "memento: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("memento starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
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

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("stopping, waiting for running captures")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in LLM factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai uses the native SDK adapter so that SDK retries stay disabled.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyllm.Backends() {
		if providerName == "openai" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			// ollama is a local server; it is addressed by BaseURL only.
			if entry.APIKey != "" && providerName != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	slog.Debug("registered llm providers", "names", reg.LLMNames())
}

// buildProviders instantiates the primary and fallback providers in order.
// A configured slot whose provider cannot be created is fatal.
func buildProviders(cfg *config.Config, reg *config.Registry) ([]summary.NamedProvider, error) {
	var out []summary.NamedProvider
	for _, ne := range cfg.Providers.Entries() {
		p, err := reg.CreateLLM(ne.Entry)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", ne.Slot, ne.Entry.Name, err)
		}
		name := ne.Entry.Name
		if len(out) > 0 && out[0].Name == name {
			// Same backend in both slots, e.g. two models of one vendor.
			name += "-" + ne.Slot
		}
		out = append(out, summary.NamedProvider{Name: name, Provider: p})
		slog.Info("provider created", "slot", ne.Slot, "name", ne.Entry.Name, "model", ne.Entry.Model)
	}
	if len(out) == 0 {
		return nil, config.ErrNoProviders
	}
	return out, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Memento, startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Primary", providerLabel(cfg.Providers.Primary))
	printRow("Fallback", providerLabel(cfg.Providers.Fallback))
	printRow("Wake phrase", cfg.Capture.WakePhrase)
	printRow("Idle timeout", cfg.Capture.IdleTimeout.String())
	printRow("Output dir", cfg.Sink.OutputDir)
	if cfg.Sink.Ingest.URL != "" {
		printRow("Ingest", "enabled")
	} else {
		printRow("Ingest", "(local only)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	if !e.Configured() {
		return "(not configured)"
	}
	return e.Name + " / " + e.Model
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
