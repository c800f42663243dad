package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// ddlItems creates the items table. The vector column has no fixed
// dimension so that arrays of any length can be stored.
const ddlItems = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS items (
    session_id  TEXT         NOT NULL,
    item_id     TEXT         NOT NULL,
    uid         TEXT         NOT NULL,
    item_type   TEXT         NOT NULL,
    data        JSONB        NOT NULL DEFAULT '{}',
    vector      vector,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_items_uid ON items (uid);
CREATE INDEX IF NOT EXISTS idx_items_item_type ON items (item_type);
`

// Migrate creates the items table and the pgvector extension. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlItems); err != nil {
		return fmt.Errorf("ingest: migrate: %w", err)
	}
	return nil
}

// PostgresStore is a [Store] backed by PostgreSQL with pgvector.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, registers pgvector types on every
// connection and runs [Migrate].
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ingest: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ingest: ping: %w", err)
	}
	// The extension has to exist before its types can be registered.
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	pool.Close()

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err = pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ingest: create pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save implements [Store].
func (s *PostgresStore) Save(ctx context.Context, item Item) error {
	const q = `
		INSERT INTO items (session_id, item_id, uid, item_type, data, vector, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, item_id) DO UPDATE SET
		    uid        = EXCLUDED.uid,
		    item_type  = EXCLUDED.item_type,
		    data       = items.data || EXCLUDED.data,
		    vector     = COALESCE(EXCLUDED.vector, items.vector)`

	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("ingest: encode item data: %w", err)
	}
	var vec *pgvector.Vector
	if len(item.Vector) > 0 {
		v := pgvector.NewVector(item.Vector)
		vec = &v
	}
	if _, err := s.pool.Exec(ctx, q,
		item.SessionID,
		item.ItemID,
		item.UID,
		item.ItemType,
		data,
		vec,
		item.CreatedAt,
	); err != nil {
		return fmt.Errorf("ingest: save item: %w", err)
	}
	return nil
}

// Item implements [Store].
func (s *PostgresStore) Item(ctx context.Context, sessionID, itemID string) (Item, error) {
	const q = `
		SELECT uid, item_type, data, vector, created_at
		FROM items WHERE session_id = $1 AND item_id = $2`

	it := Item{SessionID: sessionID, ItemID: itemID}
	var (
		data []byte
		vec  *pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, q, sessionID, itemID).Scan(&it.UID, &it.ItemType, &data, &vec, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("ingest: load item: %w", err)
	}
	if err := json.Unmarshal(data, &it.Data); err != nil {
		return Item{}, fmt.Errorf("ingest: decode item data: %w", err)
	}
	if vec != nil {
		it.Vector = vec.Slice()
	}
	return it, nil
}

// Ping implements [Store].
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
