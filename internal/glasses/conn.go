package glasses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/xid"

	"github.com/MrWong99/memento/internal/capture"
)

const (
	defaultSpeakTimeout = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

// errConnClosed is returned by output calls after the connection ended.
var errConnClosed = errors.New("glasses: connection closed")

// conn is the output side of one wearable WebSocket connection.
type conn struct {
	ws           *websocket.Conn
	speakTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, speakTimeout time.Duration) *conn {
	if speakTimeout <= 0 {
		speakTimeout = defaultSpeakTimeout
	}
	return &conn{
		ws:           ws,
		speakTimeout: speakTimeout,
		pending:      make(map[string]chan struct{}),
		done:         make(chan struct{}),
	}
}

// Speak sends a speak frame and waits for the matching speak_done.
func (c *conn) Speak(ctx context.Context, text string) error {
	id := xid.New().String()
	ack := make(chan struct{})

	c.mu.Lock()
	c.pending[id] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, ServerFrame{Type: FrameSpeak, Text: text, ID: id}); err != nil {
		return err
	}

	timer := time.NewTimer(c.speakTimeout)
	defer timer.Stop()
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errConnClosed
	case <-timer.C:
		return fmt.Errorf("glasses: no speak_done for %s within %s", id, c.speakTimeout)
	}
}

// ShowText replaces the wearable's text view.
func (c *conn) ShowText(ctx context.Context, text string) error {
	return c.write(ctx, ServerFrame{Type: FrameDisplay, Text: text})
}

// StopAudio interrupts playback on the wearable.
func (c *conn) StopAudio(ctx context.Context) error {
	return c.write(ctx, ServerFrame{Type: FrameStopAudio})
}

// acknowledge completes the Speak call waiting for id. Unknown IDs are
// ignored.
func (c *conn) acknowledge(id string) {
	c.mu.Lock()
	ack, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		close(ack)
	}
}

// close fails every pending and future output call.
func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *conn) write(ctx context.Context, f ServerFrame) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	// A write interrupted by its context closes the socket, so a cancelled
	// caller must not start one.
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("glasses: marshal %s frame: %w", f.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("glasses: write %s frame: %w", f.Type, err)
	}
	return nil
}

var _ capture.Session = (*conn)(nil)
