// Package contacts gives read-only access to the contact files written by
// the local result sink and exposes them as MCP tools.
package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/memento/internal/observe"
	"github.com/MrWong99/memento/internal/sink"
)

const (
	filePrefix = "contact-"
	fileSuffix = ".json"

	// DefaultLimit caps list results when no limit is given.
	DefaultLimit = 20
	maxLimit     = 200
)

// ErrNotFound is returned by [Dir.Get] for unknown or invalid file names.
var ErrNotFound = errors.New("contacts: not found")

// Contact is the listing view of one stored event.
type Contact struct {
	File       string   `json:"file"`
	ID         string   `json:"id"`
	Timestamp  string   `json:"timestamp"`
	Name       string   `json:"name,omitempty"`
	Info       string   `json:"info"`
	Contact    string   `json:"contact,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Location   string   `json:"location,omitempty"`
	Next       string   `json:"next,omitempty"`
	Confidence float64  `json:"confidence"`

	at time.Time
}

// Dir reads contact files from one directory.
type Dir struct {
	path string
}

// Open returns a Dir for path. The directory must exist.
func Open(path string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("contacts: resolve %q: %w", path, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("contacts: open %q: %w", abs, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("contacts: %q is not a directory", abs)
	}
	return &Dir{path: abs}, nil
}

// Path returns the absolute directory.
func (d *Dir) Path() string { return d.path }

// List returns contacts newest first. A non-empty query keeps contacts whose
// summary mentions it, case-insensitively. Unreadable files are skipped.
func (d *Dir) List(ctx context.Context, query string, limit int) ([]Contact, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	names, err := fs.Glob(os.DirFS(d.path), filePrefix+"*"+fileSuffix)
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var out []Contact
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := d.read(name)
		if err != nil {
			observe.Logger(ctx).Warn("contacts: skipping unreadable file", "file", name, "err", err)
			continue
		}
		c := summarize(name, ev)
		if query != "" && !c.matches(query) {
			continue
		}
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b Contact) int {
		if c := b.at.Compare(a.at); c != 0 {
			return c
		}
		return strings.Compare(a.File, b.File)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the full event stored in file. file must be a bare file name as
// returned by [Dir.List].
func (d *Dir) Get(_ context.Context, file string) (sink.Event, error) {
	if !validName(file) {
		return sink.Event{}, fmt.Errorf("%w: %q", ErrNotFound, file)
	}
	ev, err := d.read(file)
	if errors.Is(err, fs.ErrNotExist) {
		return sink.Event{}, fmt.Errorf("%w: %q", ErrNotFound, file)
	}
	return ev, err
}

func (d *Dir) read(name string) (sink.Event, error) {
	root, err := os.OpenRoot(d.path)
	if err != nil {
		return sink.Event{}, fmt.Errorf("contacts: open directory: %w", err)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return sink.Event{}, err
	}
	defer f.Close()

	var ev sink.Event
	if err := json.NewDecoder(f).Decode(&ev); err != nil {
		return sink.Event{}, fmt.Errorf("contacts: decode %q: %w", name, err)
	}
	return ev, nil
}

func validName(name string) bool {
	return filepath.IsLocal(name) &&
		filepath.Base(name) == name &&
		strings.HasPrefix(name, filePrefix) &&
		strings.HasSuffix(name, fileSuffix)
}

func summarize(file string, ev sink.Event) Contact {
	return Contact{
		File:       file,
		ID:         ev.ID,
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
		Name:       ev.Summary.Identity(),
		Info:       ev.Summary.Info,
		Contact:    ev.Summary.Contact,
		Skills:     ev.Summary.Skills,
		Location:   ev.PlaceName(),
		Next:       ev.Summary.Next,
		Confidence: ev.Summary.Conf,
		at:         ev.Timestamp,
	}
}

func (c Contact) matches(q string) bool {
	fields := append([]string{c.Name, c.Info, c.Contact, c.Location, c.Next}, c.Skills...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
