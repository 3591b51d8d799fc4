// Package sqlite keeps the economy document in a single SQLite row.
//
// The database is opened in WAL mode with one connection; the ledger has a
// single writer and ":memory:" databases are per-connection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"coinledger/internal/store"
)

type Store struct {
	db   *sql.DB
	name string
}

// Open opens or creates the database at path. Use ":memory:" for tests.
func Open(path, name string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, name: name}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_documents (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM ledger_documents WHERE name = ?`, s.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *Store) Save(ctx context.Context, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_documents (name, body, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`, s.name, string(doc))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
