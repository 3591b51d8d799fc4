// Package postgres keeps the economy document in a PostgreSQL jsonb row.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coinledger/internal/db"
	"coinledger/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS ledger_documents (
		name TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type Store struct {
	pool *pgxpool.Pool
	name string
}

// Open connects to databaseURL and ensures the documents table exists. name
// selects the row, so several ledgers can share a database.
func Open(ctx context.Context, databaseURL, name string) (*Store, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, pool, name)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. Close closes the pool.
func New(ctx context.Context, pool *pgxpool.Pool, name string) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool, name: name}, nil
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `
		SELECT body::text
		FROM ledger_documents
		WHERE name = $1
	`, s.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Store) Save(ctx context.Context, doc []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_documents (name, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, s.name, string(doc))
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
