// Package ingest implements the ingestion backend that receives captured
// conversation summaries and numeric arrays from the capture server and
// stores them in PostgreSQL.
//
// Items are addressed by session and a millisecond timestamp. Writing the
// same address twice merges the documents, later keys winning.
package ingest

import (
	"context"
	"errors"
	"time"
)

// Item types.
const (
	ItemTypeAudioMeta = "audio_meta"
	ItemTypeEmbedding = "embedding"
)

// ErrNotFound is returned by [Store.Item] for an unknown address.
var ErrNotFound = errors.New("ingest: item not found")

// Item is one stored document.
type Item struct {
	SessionID string
	ItemID    string
	UID       string
	ItemType  string

	// Data holds the JSON document minus the addressing fields.
	Data map[string]any

	// Vector is set for numeric arrays.
	Vector []float32

	CreatedAt time.Time
}

// Store persists items. Implementations must be safe for concurrent use.
type Store interface {
	// Save upserts item; an existing item at the same address is merged.
	Save(ctx context.Context, item Item) error

	// Item returns a stored item or [ErrNotFound].
	Item(ctx context.Context, sessionID, itemID string) (Item, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
