// Package glasses bridges smart-glasses sessions to the capture pipeline.
//
// A wearable companion connects to GET /v1/session over WebSocket and
// streams JSON frames: transcription results, voice-activity flags, its
// location and acknowledgements of finished speech. Each connection gets its
// own [capture.Machine]; the machine's spoken and displayed feedback is sent
// back over the same socket.
package glasses

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/xid"

	"github.com/MrWong99/memento/internal/capture"
	"github.com/MrWong99/memento/internal/face"
	"github.com/MrWong99/memento/internal/observe"
)

// SessionPath is the WebSocket endpoint.
const SessionPath = "/v1/session"

// closeTimeout bounds how long a disconnect waits for a running finish.
const closeTimeout = 2 * time.Minute

// Config holds the dependencies shared by every session.
type Config struct {
	Summarizer capture.Summarizer
	Sink       capture.Sink

	// Phrases defaults to the built-in phrases with the default wake phrase.
	Phrases *capture.Phrases

	// IdleTimeout defaults to [capture.DefaultIdleTimeout].
	IdleTimeout time.Duration

	// Embedder is set when face recognition is enabled.
	Embedder face.Embedder

	// Greetings limits the ready greeting per user. Nil greets every
	// connection.
	Greetings *GreetingGate

	// SpeakTimeout bounds the wait for a speak_done. Default: 30s.
	SpeakTimeout time.Duration

	// OriginPatterns are passed to the WebSocket handshake. Empty allows
	// same-origin requests only.
	OriginPatterns []string

	Metrics *observe.Metrics
}

// Server accepts wearable sessions.
type Server struct {
	cfg Config

	// sessions tracks running sessions; hijacked connections are not
	// covered by http.Server.Shutdown.
	sessions sync.WaitGroup
}

// NewServer validates cfg and returns a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Summarizer == nil || cfg.Sink == nil {
		return nil, errors.New("glasses: summarizer and sink are required")
	}
	if cfg.Phrases == nil {
		cfg.Phrases = capture.NewPhrases("")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = capture.DefaultIdleTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg}, nil
}

// Register mounts the session endpoint on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET "+SessionPath, s)
}

// Wait blocks until every running session has ended or ctx is done.
// Sessions end when their request context is cancelled.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request and runs the session until the wearable
// disconnects. Query parameters userId and sessionId pre-set the identity; a
// hello frame overrides them when it arrives first.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("glasses: websocket handshake failed", "err", err)
		return
	}
	defer ws.CloseNow()

	s.sessions.Add(1)
	defer s.sessions.Done()

	q := r.URL.Query()
	sess := &session{
		server:    s,
		conn:      newConn(ws, s.cfg.SpeakTimeout),
		ws:        ws,
		userID:    q.Get("userId"),
		sessionID: q.Get("sessionId"),
	}
	if err := sess.run(r.Context()); err != nil {
		ws.Close(websocket.StatusInternalError, "session failed")
		return
	}
	ws.Close(websocket.StatusNormalClosure, "")
}

// session is one connected wearable.
type session struct {
	server    *Server
	conn      *conn
	ws        *websocket.Conn
	userID    string
	sessionID string

	machine *capture.Machine
	log     *slog.Logger
	wg      sync.WaitGroup
}

func (s *session) run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	metrics := s.server.cfg.Metrics
	metrics.ActiveSessions.Add(ctx, 1)
	defer metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	s.log = observe.Logger(ctx)
	readErr := s.readLoop(ctx)
	s.teardown(parent, cancel)

	status := websocket.CloseStatus(readErr)
	if readErr == nil || status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(readErr, context.Canceled) {
		return nil
	}
	return readErr
}

// teardown runs once the read loop returned, so no listener is left. Speech
// stops with the session context; stop_audio still goes out while the socket
// is writable, and a running finish completes its summary and sink calls.
func (s *session) teardown(parent context.Context, cancel context.CancelFunc) {
	cancel()
	if s.machine != nil {
		closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(parent), closeTimeout)
		defer closeCancel()
		if err := s.machine.Close(closeCtx); err != nil {
			s.log.Warn("glasses: session closed before capture finished", "session_id", s.sessionID, "err", err)
		}
	}
	s.conn.close()
	s.wg.Wait()
	s.log.Info("glasses: session ended", "session_id", s.sessionID, "user_id", s.userID)
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.ws.Read(ctx)
		if err != nil {
			return err
		}

		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warn("glasses: dropping malformed frame", "session_id", s.sessionID, "err", err)
			continue
		}

		if s.machine == nil {
			if err := s.start(ctx, f); err != nil {
				return err
			}
			if f.Type == FrameHello {
				continue
			}
		}
		s.dispatch(f)
	}
}

// start creates the capture machine on the first frame.
func (s *session) start(ctx context.Context, first ClientFrame) error {
	if first.Type == FrameHello {
		if first.UserID != "" {
			s.userID = first.UserID
		}
		if first.SessionID != "" {
			s.sessionID = first.SessionID
		}
	}
	if s.sessionID == "" {
		s.sessionID = xid.New().String()
	}
	if s.userID == "" {
		s.userID = "anonymous"
	}
	s.log = s.log.With("session_id", s.sessionID, "user_id", s.userID)

	cfg := s.server.cfg
	opts := []capture.Option{
		capture.WithPhrases(cfg.Phrases),
		capture.WithIdleTimeout(cfg.IdleTimeout),
		capture.WithIdentity(s.userID, s.sessionID),
		capture.WithMetrics(cfg.Metrics),
	}
	if cfg.Embedder != nil {
		opts = append(opts, capture.WithEmbedder(cfg.Embedder))
	}
	m, err := capture.New(ctx, s.conn, cfg.Summarizer, cfg.Sink, opts...)
	if err != nil {
		return err
	}
	s.machine = m
	if loc := first.Position(); loc != nil {
		m.SetLocation(loc)
	}
	s.log.Info("glasses: session started")

	if cfg.Greetings == nil || cfg.Greetings.Allow(s.userID) {
		greeting := Greeting(cfg.Phrases.WakePhrase())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.conn.ShowText(ctx, greeting); err != nil {
				return
			}
			if err := s.conn.Speak(ctx, greeting); err != nil && ctx.Err() == nil {
				s.log.Warn("glasses: greeting failed", "err", err)
			}
		}()
	}
	return nil
}

func (s *session) dispatch(f ClientFrame) {
	switch f.Type {
	case FrameTranscription:
		s.machine.HandleTranscription(f.Transcription())
	case FrameVAD:
		s.machine.HandleVoiceActivity(capture.VoiceActivity{Speaking: bool(f.Status)})
	case FrameLocation, FrameHello:
		if loc := f.Position(); loc != nil {
			s.machine.SetLocation(loc)
		}
	case FrameSpeakDone:
		s.conn.acknowledge(f.ID)
	default:
		s.log.Debug("glasses: ignoring frame", "type", f.Type)
	}
}
