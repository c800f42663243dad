// Package summary turns a cleaned conversation transcript into a validated
// [Record].
//
// [Client] owns the provider side: it offers the model a single forced tool
// call shaped by [ToolSchema], retries transient HTTP failures, walks an
// ordered list of providers and performs at most one repair pass when a
// provider answers with unusable output. [Validate] is the only shape gate;
// every caller downstream of [Client.Summarize] may assume a complete Record.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/resilience"
	"github.com/MrWong99/memento/pkg/provider/llm"
)

// ToolName is the function the model is forced to call with the record.
const ToolName = "save_summary"

// RepairInstruction opens the follow-up message of a repair pass.
const RepairInstruction = "Return corrected JSON only via the summary tool, no commentary."

const (
	defaultTemperature = 0.1
	repairTemperature  = 0
	defaultMaxTokens   = 1024
)

const systemPrompt = `You extract structured notes from a networking conversation recorded on smart glasses.
The user met someone and the transcript below is what was said. Call the ` + ToolName + ` tool exactly once.

Rules:
- info: who the other person is and what you talked about. If their name was mentioned you MUST include their full name in info.
- contact: email addresses, phone numbers, handles or websites that were shared. Empty string if none.
- skills: skills, technologies or fields of expertise the person mentioned.
- location: where the conversation happened or where the person is based. Empty string if unknown.
- next: the agreed follow-up. Empty string if none.
- conf: your confidence in the extraction between 0 and 1.
Do not invent details that are not in the transcript.`

var (
	// ErrNoProviders is returned by [New] when no provider is configured.
	ErrNoProviders = errors.New("summary: no summarizer provider configured")

	// ErrSummarizationFailed wraps every error returned by [Client.Summarize].
	ErrSummarizationFailed = errors.New("summary: summarization failed")

	errNoToolCall = errors.New("model replied without calling " + ToolName)
)

// NamedProvider is one slot in the provider list. A nil Provider marks an
// unconfigured slot and is skipped.
type NamedProvider struct {
	Name     string
	Provider llm.Provider
}

// Option is a functional option for [New].
type Option func(*Client)

// WithRetry sets the per-provider retry policy. The retry classification is
// [llm.IsRetryable] unless cfg.Retryable is set.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithTemperature sets the temperature of extraction calls. Default: 0.1.
// Repair passes always use 0.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker configures the circuit breaker placed in front of each provider.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = cfg }
}

// WithCallTimeout bounds every single model call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// Client summarises transcripts against an ordered list of providers.
// It is read-only after [New] and safe for concurrent use.
type Client struct {
	group       *resilience.FallbackGroup[llm.Provider]
	retry       resilience.RetryConfig
	breaker     resilience.CircuitBreakerConfig
	temperature float64
	callTimeout time.Duration
	metrics     *observe.Metrics
}

// New builds a Client trying providers in the given order. Slots with a nil
// Provider are skipped; [ErrNoProviders] is returned when none remain.
func New(providers []NamedProvider, opts ...Option) (*Client, error) {
	c := &Client{temperature: defaultTemperature}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = llm.IsRetryable
	}

	fbCfg := resilience.FallbackConfig{CircuitBreaker: c.breaker}
	for _, np := range providers {
		if np.Provider == nil {
			continue
		}
		if !np.Provider.Capabilities().SupportsToolCalling {
			slog.Warn("summary: model does not advertise tool calling, expect repair passes", "provider", np.Name)
		}
		if c.group == nil {
			c.group = resilience.NewFallbackGroup(np.Provider, np.Name, fbCfg)
			continue
		}
		c.group.AddFallback(np.Name, np.Provider)
	}
	if c.group == nil {
		return nil, ErrNoProviders
	}
	return c, nil
}

// Providers returns the provider names in the order they are tried.
func (c *Client) Providers() []string { return c.group.Names() }

// Ready reports an error when every provider's circuit breaker is open.
func (c *Client) Ready(context.Context) error { return c.group.Available() }

// Summarize extracts a [Record] from a cleaned transcript. Any returned error
// wraps [ErrSummarizationFailed].
func (c *Client) Summarize(ctx context.Context, cleaned string) (Record, error) {
	ctx, span := observe.StartSpan(ctx, "summary.summarize",
		trace.WithAttributes(attribute.Int("transcript.chars", len(cleaned))),
	)
	defer span.End()

	start := time.Now()
	rec, err := resilience.ExecuteWithResult(ctx, c.group, func(ctx context.Context, name string, p llm.Provider) (Record, error) {
		return c.summarizeWith(ctx, name, p, cleaned)
	})
	c.metrics.SummarizerDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarization failed")
		return Record{}, fmt.Errorf("%w: %w", ErrSummarizationFailed, err)
	}
	return rec, nil
}

func (c *Client) summarizeWith(ctx context.Context, name string, p llm.Provider, cleaned string) (Record, error) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: cleaned}}
	resp, err := c.call(ctx, name, p, msgs, c.temperature)
	if err != nil {
		return Record{}, err
	}

	tc, ok := resp.ToolCall(ToolName)
	if !ok {
		c.metrics.RecordProviderError(ctx, name, "no_tool_call")
		return c.repair(ctx, name, p, cleaned, resp.Content, errNoToolCall)
	}
	rec, err := ValidateJSON([]byte(tc.Arguments))
	if err != nil {
		c.metrics.RecordProviderError(ctx, name, "schema_violation")
		return c.repair(ctx, name, p, cleaned, tc.Arguments, err)
	}
	return rec, nil
}

// repair asks the same provider once more for a valid tool call. Its outcome
// is final: a failure halts the provider walk.
func (c *Client) repair(ctx context.Context, name string, p llm.Provider, cleaned, raw string, cause error) (Record, error) {
	observe.Logger(ctx).Info("summary: unusable model output, repairing", "provider", name, "err", cause)

	if strings.TrimSpace(raw) == "" {
		raw = "(empty reply)"
	}
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: cleaned},
		{Role: llm.RoleAssistant, Content: raw},
		{Role: llm.RoleUser, Content: RepairInstruction + "\nProblem: " + cause.Error()},
	}
	resp, err := c.call(ctx, name, p, msgs, repairTemperature)
	if err != nil {
		return Record{}, resilience.Halt(fmt.Errorf("summary: repair via %s: %w", name, err))
	}

	var out string
	if tc, ok := resp.ToolCall(ToolName); ok {
		out = tc.Arguments
	} else {
		out = stripCodeFence(resp.Content)
	}
	rec, err := ValidateJSON([]byte(out))
	if err != nil {
		c.metrics.RecordProviderError(ctx, name, "repair_failed")
		return Record{}, resilience.Halt(fmt.Errorf("summary: repair via %s: %w", name, err))
	}
	return rec, nil
}

// call performs one logical model request under the retry policy.
func (c *Client) call(ctx context.Context, name string, p llm.Provider, msgs []llm.Message, temperature float64) (*llm.CompletionResponse, error) {
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     msgs,
		Tools: []llm.ToolDefinition{{
			Name:        ToolName,
			Description: "Save the structured notes extracted from the conversation.",
			Parameters:  ToolSchema(),
		}},
		ToolChoice:  ToolName,
		Temperature: temperature,
		MaxTokens:   defaultMaxTokens,
	}

	retry := c.retry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		observe.Logger(ctx).Warn("summary: provider call failed, retrying",
			"provider", name, "attempt", attempt, "wait", wait, "err", err)
	}

	return resilience.Retry(ctx, retry, func(ctx context.Context, attempt int) (*llm.CompletionResponse, error) {
		ctx, span := observe.StartSpan(ctx, "summary.provider_call",
			trace.WithAttributes(
				attribute.String("provider", name),
				attribute.Int("attempt", attempt),
			),
		)
		defer span.End()

		if c.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := p.Complete(ctx, req)
		c.metrics.RecordProviderRequest(ctx, name, statusLabel(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider call failed")
			c.metrics.RecordProviderError(ctx, name, "request")
			return nil, err
		}
		if resp == nil {
			return nil, fmt.Errorf("summary: %s returned no response", name)
		}
		return resp, nil
	})
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := llm.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	return "error"
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
