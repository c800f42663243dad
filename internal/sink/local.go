package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/memento/internal/observe"
)

// ErrUnsafePath is returned when a derived file name could escape the output
// directory.
var ErrUnsafePath = errors.New("sink: unsafe path")

const (
	// maxSlugLen bounds the identity part of a file name.
	maxSlugLen  = 48
	unknownSlug = "unknown"
)

// Local writes events as JSON files into a single directory. Every event
// produces a new file; existing files are never overwritten.
type Local struct {
	dir string
}

// NewLocal returns a Local writing into dir, creating it when missing.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("sink: output directory must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("sink: resolve %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create output directory: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute output directory.
func (l *Local) Dir() string { return l.dir }

// Write stores ev and returns the path of the new file.
func (l *Local) Write(ctx context.Context, ev Event) (string, error) {
	_, span := observe.StartSpan(ctx, "sink.local", trace.WithAttributes(attribute.String("event.id", ev.ID)))
	defer span.End()

	path, err := l.write(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "local write failed")
		return "", err
	}
	return path, nil
}

func (l *Local) write(ev Event) (string, error) {
	id := ev.ID
	if id == "" {
		id = xid.New().String()
	}
	name := FileName(ev.Summary.Identity(), ev.Timestamp, id)
	if !filepath.IsLocal(name) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "", fmt.Errorf("sink: encode event: %w", err)
	}

	// os.Root refuses anything resolving outside dir, symlinks included.
	root, err := os.OpenRoot(l.dir)
	if err != nil {
		return "", fmt.Errorf("sink: open output directory: %w", err)
	}
	defer root.Close()

	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("sink: create %s: %w", name, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return "", fmt.Errorf("sink: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("sink: close %s: %w", name, err)
	}
	return filepath.Join(l.dir, name), nil
}

// Writable checks that the output directory accepts new files.
func (l *Local) Writable(context.Context) error {
	root, err := os.OpenRoot(l.dir)
	if err != nil {
		return err
	}
	defer root.Close()

	probe := ".probe-" + xid.New().String()
	f, err := root.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	f.Close()
	return root.Remove(probe)
}

// FileName builds "contact-<slug>-<yyyy-mm-dd>-<id>.json".
func FileName(identity string, at time.Time, id string) string {
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("contact-%s-%s-%s.json", Slug(identity), at.Format(time.DateOnly), Slug(id))
}

// Slug reduces s to [a-z0-9._-], collapsing every other run of characters
// into a single dash. The result is at most 48 bytes, never starts with a
// dot and is "unknown" when nothing usable remains.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := b.String()
	if len(out) > maxSlugLen {
		out = out[:maxSlugLen]
	}
	out = strings.Trim(out, "-.")
	// ".." must never survive inside a path component.
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	if out == "" {
		return unknownSlug
	}
	return out
}
