package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/memento/internal/face"
	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/sink"
	"github.com/MrWong99/memento/internal/transcript"
)

// DefaultIdleTimeout ends a capture after this much silence.
const DefaultIdleTimeout = 120 * time.Second

// State is the collection state of a [Machine]. Processing is tracked
// separately; see [Machine.Processing].
type State int

const (
	StateIdle State = iota
	StateArmed
	StateCollecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCollecting:
		return "collecting"
	default:
		return "unknown"
	}
}

// Option is a functional option for [New].
type Option func(*Machine)

// WithPhrases sets the wake and stop phrase matcher.
func WithPhrases(p *Phrases) Option {
	return func(m *Machine) { m.phrases = p }
}

// WithIdleTimeout sets the silence watchdog. Default: 120s.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Machine) { m.idleTimeout = d }
}

// WithIdentity tags finished events with the wearer and session.
func WithIdentity(userID, sessionID string) Option {
	return func(m *Machine) {
		m.userID = userID
		m.sessionID = sessionID
	}
}

// WithEmbedder enables face embeddings on finished events.
func WithEmbedder(e face.Embedder) Option {
	return func(m *Machine) { m.embedder = e }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(metrics *observe.Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

// Machine is the capture state machine of one wearable session. Event
// handlers may be called from any goroutine; state changes are serialised
// under an internal lock and every blocking call runs outside it.
type Machine struct {
	ctx        context.Context
	session    Session
	summarizer Summarizer
	sink       Sink

	phrases     *Phrases
	idleTimeout time.Duration
	userID      string
	sessionID   string
	embedder    face.Embedder
	metrics     *observe.Metrics
	log         *slog.Logger

	mu         sync.Mutex
	state      State
	processing bool
	closed     bool
	speaking   bool
	buf        Buffer
	timer      *time.Timer
	timerGen   uint64
	location   *sink.Location

	wg sync.WaitGroup
}

// New returns an idle Machine bound to the session context ctx. Speech to
// the wearer stops when ctx is cancelled; a running finish still completes
// its summarizer and sink calls.
func New(ctx context.Context, session Session, summarizer Summarizer, snk Sink, opts ...Option) (*Machine, error) {
	if session == nil || summarizer == nil || snk == nil {
		return nil, errors.New("capture: session, summarizer and sink are required")
	}
	m := &Machine{
		ctx:         ctx,
		session:     session,
		summarizer:  summarizer,
		sink:        snk,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	if m.phrases == nil {
		m.phrases = NewPhrases("")
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	m.log = slog.Default().With("session_id", m.sessionID, "user_id", m.userID)
	return m, nil
}

// State returns the current collection state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Processing reports whether a finished utterance is being summarised.
func (m *Machine) Processing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing
}

// SetLocation records the wearer's last known position. It is attached to
// the next finished event.
func (m *Machine) SetLocation(loc *sink.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = loc
}

// HandleTranscription feeds one transcription event. Events arriving while
// an utterance is processing are dropped.
func (m *Machine) HandleTranscription(tr Transcription) {
	now := time.Now()

	m.mu.Lock()
	if m.closed || m.processing {
		m.mu.Unlock()
		return
	}

	if m.state == StateIdle {
		rest, ok := m.phrases.MatchWake(tr.Text)
		if !ok {
			m.mu.Unlock()
			return
		}
		m.buf.Reset()
		m.speaking = false
		m.state = StateArmed
		m.speakAsyncLocked("Recording. Say done when you're finished.")
		m.log.Info("capture: armed", "wake_text", tr.Text)
		tr.Text = rest
		if tr.IsFinal && m.stopLocked(tr, now) {
			return
		}
		if rest != "" {
			m.accept(tr, now)
		}
		m.resetTimerLocked()
		live := m.buf.LiveText()
		m.mu.Unlock()

		m.show(m.ctx, liveView(false, live))
		return
	}

	if tr.IsFinal && m.buf.Len() == 0 {
		// The first final result often repeats a wake phrase that was
		// detected in an interim result.
		if rest, ok := m.phrases.MatchWake(tr.Text); ok {
			tr.Text = rest
		}
	}
	if tr.IsFinal && m.stopLocked(tr, now) {
		return
	}

	m.accept(tr, now)
	m.resetTimerLocked()
	speaking, live := m.speaking, m.buf.LiveText()
	m.mu.Unlock()

	m.show(m.ctx, liveView(speaking, live))
}

// stopLocked starts a finish when the final tr contains a stop phrase. The
// text before the phrase is kept; the interim preview of the stop phrase is
// not. On true m.mu has been released.
func (m *Machine) stopLocked(tr Transcription, now time.Time) bool {
	before, ok := m.phrases.MatchStop(tr.Text)
	if !ok {
		return false
	}
	if before != "" {
		tr.Text = before
		m.buf.AppendFinal(tr, now)
	}
	m.buf.ClearPartial()
	snap := m.beginFinishLocked()
	m.mu.Unlock()
	go m.finish(snap, ReasonStopPhrase)
	return true
}

// accept buffers tr. Caller holds m.mu.
func (m *Machine) accept(tr Transcription, now time.Time) {
	if tr.IsFinal {
		m.buf.AppendFinal(tr, now)
	} else {
		m.buf.SetPartial(tr.Text)
	}
	m.state = StateCollecting
}

// HandleVoiceActivity updates the live view. It never changes state.
func (m *Machine) HandleVoiceActivity(va VoiceActivity) {
	m.mu.Lock()
	if m.closed || m.processing || m.state != StateCollecting {
		m.mu.Unlock()
		return
	}
	m.speaking = va.Speaking
	live := m.buf.LiveText()
	m.mu.Unlock()

	m.show(m.ctx, liveView(va.Speaking, live))
}

// Close stops accepting events, interrupts audio output and waits for a
// running finish or for ctx to end.
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.stopTimerLocked()
	m.mu.Unlock()

	if err := m.session.StopAudio(context.WithoutCancel(ctx)); err != nil {
		m.log.Warn("capture: failed to stop audio on close", "err", err)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ── Idle watchdog ───────────────────────────────────────────────────────────

// resetTimerLocked restarts the silence watchdog. Caller holds m.mu.
func (m *Machine) resetTimerLocked() {
	m.stopTimerLocked()
	gen := m.timerGen
	m.timer = time.AfterFunc(m.idleTimeout, func() { m.onIdle(gen) })
}

// stopTimerLocked cancels the watchdog. A callback already running sees a
// newer generation and does nothing. Caller holds m.mu.
func (m *Machine) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) onIdle(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || m.closed || m.processing || m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	snap := m.beginFinishLocked()
	m.mu.Unlock()

	go m.finish(snap, ReasonSilenceTimeout)
}

// ── Finish ──────────────────────────────────────────────────────────────────

// beginFinishLocked flips to processing and takes the buffer. Caller holds
// m.mu, which makes the flip atomic with the decision to finish.
func (m *Machine) beginFinishLocked() Snapshot {
	m.stopTimerLocked()
	m.state = StateIdle
	m.processing = true
	m.speaking = false
	m.wg.Add(1)
	return m.buf.Take()
}

func (m *Machine) finish(snap Snapshot, reason FinishReason) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.processing = false
		m.mu.Unlock()
	}()

	// Provider and sink calls outlive the connection; speech does not.
	work, span := observe.StartSpan(context.WithoutCancel(m.ctx), "capture.finish",
		trace.WithAttributes(
			attribute.String("reason", string(reason)),
			attribute.Int("segments", len(snap.Segments)),
		),
	)
	defer span.End()
	log := observe.Logger(work).With("session_id", m.sessionID, "reason", string(reason))

	raw := strings.TrimSpace(snap.Text)
	if raw == "" {
		log.Info("capture: nothing captured")
		m.metrics.RecordCapture(work, observe.OutcomeEmpty)
		m.notify(NoticeNothingCaptured)
		return
	}
	if !transcript.WorthSummarizing(raw) {
		log.Info("capture: utterance too short", "chars", len(raw))
		m.metrics.RecordCapture(work, observe.OutcomeTooShort)
		m.notify(NoticeTooShort)
		return
	}

	m.show(m.ctx, NoticeProcessing)
	cleaned := transcript.Clean(raw)
	if cleaned == "" {
		log.Info("capture: nothing left after cleaning")
		m.metrics.RecordCapture(work, observe.OutcomeEmpty)
		m.notify(NoticeNothingCaptured)
		return
	}

	rec, err := m.summarizer.Summarize(work, cleaned)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarization failed")
		log.Error("capture: summarization failed", "err", err)
		m.metrics.RecordCapture(work, observe.OutcomeFailed)
		m.notify(NoticeFailed)
		return
	}

	m.mu.Lock()
	loc := m.location
	m.mu.Unlock()

	ev := sink.Event{
		Timestamp:       time.Now(),
		UserID:          m.userID,
		SessionID:       m.sessionID,
		Reason:          string(reason),
		Summary:         rec,
		Transcript:      raw,
		CleanTranscript: cleaned,
		Segments:        snap.Segments,
		GPS:             loc,
	}
	if m.embedder != nil {
		emb, err := m.embedder.Embed(work)
		if err != nil {
			log.Warn("capture: face embedding failed", "err", err)
		}
		ev.Embedding = emb
	}

	res := m.sink.Deliver(work, ev)
	outcome := observe.OutcomeSaved
	if res.Err() != nil {
		outcome = observe.OutcomeSinkPartial
	}
	m.metrics.RecordCapture(work, outcome)
	log.Info("capture: finished", "identity", rec.Identity(), "local_path", res.LocalPath, "remote_sent", res.RemoteSent)

	m.notify(Recap(rec) + saveStatus(res))
}

// ── Output ──────────────────────────────────────────────────────────────────

// notify shows text and says it, waiting for playback.
func (m *Machine) notify(text string) {
	m.show(m.ctx, text)
	if err := m.session.Speak(m.ctx, text); err != nil && m.ctx.Err() == nil {
		m.log.Warn("capture: speak failed", "err", err)
	}
}

func (m *Machine) show(ctx context.Context, text string) {
	if err := m.session.ShowText(ctx, text); err != nil && ctx.Err() == nil {
		m.log.Warn("capture: display failed", "err", err)
	}
}

// speakAsyncLocked speaks without blocking the event handler, whose
// goroutine may be the one delivering the playback acknowledgement. Caller
// holds m.mu so that Close cannot start waiting before the goroutine is
// counted.
func (m *Machine) speakAsyncLocked(text string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.session.Speak(m.ctx, text); err != nil && m.ctx.Err() == nil {
			m.log.Warn("capture: speak failed", "err", err)
		}
	}()
}
