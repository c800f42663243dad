package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the LLM backends shipped with Memento.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"}

// Environment variables applied by [ApplyEnv].
const (
	EnvPrimaryAPIKey   = "MEMENTO_PRIMARY_API_KEY"
	EnvFallbackAPIKey  = "MEMENTO_FALLBACK_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvWakePhrase      = "MEMENTO_WAKE_PHRASE"
	EnvTargetID        = "MEMENTO_TARGET_ID"
	EnvIngestURL       = "MEMENTO_INGEST_URL"
	EnvIngestSecret    = "MEMENTO_INGEST_SECRET"
	EnvPostgresDSN     = "MEMENTO_POSTGRES_DSN"
)

// ErrNoProviders is returned by [Validate] when neither provider slot is set.
var ErrNoProviders = errors.New("config: no summarization provider configured; set providers.primary or providers.fallback")

// Validator checks a decoded and defaulted [Config]. Each binary validates
// only the sections it uses.
type Validator func(*Config) error

// Load reads the YAML configuration file at path and returns a [Config]
// validated for the capture server.
func Load(path string) (*Config, error) {
	return LoadFile(path, Validate)
}

// LoadFile reads the YAML configuration file at path and checks it with
// validate.
func LoadFile(path string, validate Validator) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := loadFromReader(f, os.LookupEnv, validate)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result for the capture server.
func LoadFromReader(r io.Reader) (*Config, error) {
	return loadFromReader(r, os.LookupEnv, Validate)
}

func loadFromReader(r io.Reader, lookup func(string) (string, bool), validate Validator) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg, lookup)
	ApplyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with values from the process environment.
func ApplyEnv(cfg *Config) { applyEnv(cfg, os.LookupEnv) }

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if v := get(EnvPrimaryAPIKey); v != "" {
		cfg.Providers.Primary.APIKey = v
	}
	if v := get(EnvFallbackAPIKey); v != "" {
		cfg.Providers.Fallback.APIKey = v
	}
	// Vendor keys fill slots that name the vendor and have no key yet.
	for _, e := range []*ProviderEntry{&cfg.Providers.Primary, &cfg.Providers.Fallback} {
		if e.APIKey != "" {
			continue
		}
		switch e.Name {
		case "openai":
			e.APIKey = get(EnvOpenAIAPIKey)
		case "anthropic":
			e.APIKey = get(EnvAnthropicAPIKey)
		}
	}

	if v := get(EnvWakePhrase); v != "" {
		cfg.Capture.WakePhrase = v
	}
	if v := get(EnvTargetID); v != "" {
		cfg.Sink.TargetID = v
	}
	if v := get(EnvIngestURL); v != "" {
		cfg.Sink.Ingest.URL = v
	}
	if v := get(EnvIngestSecret); v != "" {
		cfg.Sink.Ingest.Secret = v
		if cfg.Backend.Secret == "" {
			cfg.Backend.Secret = v
		}
	}
	if v := get(EnvPostgresDSN); v != "" {
		cfg.Backend.PostgresDSN = v
	}
}

// ApplyDefaults fills unset values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Summarizer.Temperature == nil {
		t := DefaultTemperature
		cfg.Summarizer.Temperature = &t
	}
	if cfg.Summarizer.MaxAttempts == 0 {
		cfg.Summarizer.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Summarizer.InitialBackoff == 0 {
		cfg.Summarizer.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Summarizer.Timeout == 0 {
		cfg.Summarizer.Timeout = DefaultCallTimeout
	}
	if cfg.Capture.WakePhrase == "" {
		cfg.Capture.WakePhrase = DefaultWakePhrase
	}
	if cfg.Capture.IdleTimeout == 0 {
		cfg.Capture.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Capture.GreetingCooldown == 0 {
		cfg.Capture.GreetingCooldown = DefaultGreetingCooldown
	}
	if cfg.Sink.OutputDir == "" {
		cfg.Sink.OutputDir = DefaultOutputDir
	}
	if cfg.Sink.Ingest.Timeout == 0 {
		cfg.Sink.Ingest.Timeout = DefaultIngestTimeout
	}
	if cfg.Backend.ListenAddr == "" {
		cfg.Backend.ListenAddr = DefaultBackendListenAddr
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values for the capture
// server. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	errs := []error{ValidateServer(cfg)}

	// Providers
	if !cfg.Providers.Primary.Configured() && !cfg.Providers.Fallback.Configured() {
		errs = append(errs, ErrNoProviders)
	}
	for _, ne := range cfg.Providers.Entries() {
		validateProviderName(ne.Slot, ne.Entry.Name)
		if ne.Entry.Model == "" {
			errs = append(errs, fmt.Errorf("providers.%s.model is required", ne.Slot))
		}
	}

	// Summarizer
	if t := cfg.Summarizer.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("summarizer.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Summarizer.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("summarizer.max_attempts must be positive, got %d", cfg.Summarizer.MaxAttempts))
	}
	if cfg.Summarizer.InitialBackoff < 0 {
		errs = append(errs, fmt.Errorf("summarizer.initial_backoff must be positive, got %s", cfg.Summarizer.InitialBackoff))
	}
	if cfg.Summarizer.Timeout < 0 {
		errs = append(errs, fmt.Errorf("summarizer.timeout must be positive, got %s", cfg.Summarizer.Timeout))
	}

	// Capture
	if cfg.Capture.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("capture.idle_timeout must be positive, got %s", cfg.Capture.IdleTimeout))
	}
	if cfg.Capture.GreetingCooldown < 0 {
		errs = append(errs, fmt.Errorf("capture.greeting_cooldown must be positive, got %s", cfg.Capture.GreetingCooldown))
	}

	// Sink
	if u := cfg.Sink.Ingest.URL; u != "" {
		if err := validateHTTPURL(u); err != nil {
			errs = append(errs, fmt.Errorf("sink.ingest.url: %w", err))
		}
	}
	if cfg.Sink.Ingest.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sink.ingest.timeout must be positive, got %s", cfg.Sink.Ingest.Timeout))
	}
	if cfg.Sink.Ingest.URL == "" && cfg.Sink.Ingest.Secret != "" {
		slog.Warn("sink.ingest.secret is set but sink.ingest.url is empty; remote delivery is disabled")
	}

	return errors.Join(errs...)
}

// ValidateServer checks the server section shared by every binary.
func ValidateServer(cfg *Config) error {
	var errs []error
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	return errors.Join(errs...)
}

// ValidateBackend checks the settings used by the ingestion backend. The
// provider slots are not required.
func ValidateBackend(cfg *Config) error {
	errs := []error{ValidateServer(cfg)}
	if cfg.Backend.PostgresDSN == "" {
		errs = append(errs, errors.New("backend.postgres_dsn is required"))
	}
	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// validateProviderName logs a warning if name is not one of
// [ValidProviderNames].
func validateProviderName(slot, name string) {
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"slot", slot,
		"name", name,
		"known", ValidProviderNames,
	)
}
