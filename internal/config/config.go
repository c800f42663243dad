// Package config provides the configuration schema, loader, and provider registry
// for the Memento capture server, its ingestion backend and the contacts MCP server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults] for unset values.
const (
	DefaultListenAddr        = ":8080"
	DefaultBackendListenAddr = ":8081"
	DefaultOutputDir         = "output"
	DefaultWakePhrase        = "hey memento"
	DefaultTemperature       = 0.1
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 300 * time.Millisecond
	DefaultCallTimeout       = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultGreetingCooldown  = 5 * time.Minute
	DefaultIngestTimeout     = 10 * time.Second
	DefaultServiceName       = "memento"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Capture    CaptureConfig    `yaml:"capture"`
	Sink       SinkConfig       `yaml:"sink"`
	Backend    BackendConfig    `yaml:"backend"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the capture server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins are host patterns accepted in the WebSocket handshake's
	// Origin header. Empty allows same-origin and non-browser clients only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the summarization providers in the order they are
// tried. At least one slot must be configured.
type ProvidersConfig struct {
	Primary  ProviderEntry `yaml:"primary"`
	Fallback ProviderEntry `yaml:"fallback"`
}

// Entries returns the configured slots in fallback order together with
// their slot names.
func (p ProvidersConfig) Entries() []NamedEntry {
	var out []NamedEntry
	if p.Primary.Configured() {
		out = append(out, NamedEntry{Slot: "primary", Entry: p.Primary})
	}
	if p.Fallback.Configured() {
		out = append(out, NamedEntry{Slot: "fallback", Entry: p.Fallback})
	}
	return out
}

// NamedEntry pairs a provider slot with its configuration.
type NamedEntry struct {
	Slot  string
	Entry ProviderEntry
}

// ProviderEntry is the configuration block of one LLM provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// Configured reports whether the slot names a provider.
func (e ProviderEntry) Configured() bool { return e.Name != "" }

// SummarizerConfig tunes the summarizer client.
type SummarizerConfig struct {
	Temperature    *float64      `yaml:"temperature"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// Timeout bounds a single provider call.
	Timeout time.Duration `yaml:"timeout"`
}

// CaptureConfig controls the capture state machine.
type CaptureConfig struct {
	WakePhrase string `yaml:"wake_phrase"`

	// FuzzyWake additionally accepts phonetically similar wake phrases
	// ("hey momento").
	FuzzyWake bool `yaml:"fuzzy_wake"`

	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	FaceRecognition  bool          `yaml:"face_recognition"`
	GreetingCooldown time.Duration `yaml:"greeting_cooldown"`
}

// SinkConfig controls where captured summaries are written.
type SinkConfig struct {
	OutputDir string `yaml:"output_dir"`

	// TargetID is sent as uid to the ingestion backend. Empty uses the
	// session's user ID.
	TargetID string `yaml:"target_id"`

	Ingest IngestConfig `yaml:"ingest"`
}

// IngestConfig configures the remote ingestion endpoint. An empty URL
// disables remote delivery.
type IngestConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// BackendConfig configures the ingestion backend (cmd/memento-ingest).
type BackendConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// Secret, when set, requires a valid signature header on every ingest
	// request.
	Secret string `yaml:"secret"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`

	// Metrics enables the Prometheus /metrics endpoint. Nil means enabled.
	Metrics *bool `yaml:"metrics"`
}

// MetricsEnabled reports whether the /metrics endpoint should be served.
func (t TelemetryConfig) MetricsEnabled() bool {
	return t.Metrics == nil || *t.Metrics
}
