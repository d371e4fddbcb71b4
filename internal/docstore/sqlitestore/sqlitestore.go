// Package sqlitestore is a document collection backend on a local SQLite
// file. Documents are stored as JSON; a version counter in the meta table
// moves on every write so live queries in other processes notice.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Makepad-fr/tadalive/internal/docstore"
)

// Options configures Open.
type Options struct {
	PollInterval time.Duration // 0 disables cross-process change detection
	Logger       *slog.Logger
}

// Store implements docstore.Service.
type Store struct {
	db  *sql.DB
	hub *docstore.Hub
}

var _ docstore.Service = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, opt Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas are per connection; one connection keeps them and serializes writes.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	opts := []docstore.HubOption{docstore.WithLogger(opt.Logger)}
	if opt.PollInterval > 0 {
		opts = append(opts, docstore.WithPolling(s.stamp, opt.PollInterval))
	}
	s.hub = docstore.NewHub(s.load, opts...)
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
		`INSERT OR IGNORE INTO meta (k, v) VALUES ('version', '0');`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close stops live queries and closes the database.
func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// Append stores doc under a fresh id and returns the id.
func (s *Store) Append(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	if err := docstore.ValidateName("collection", collection); err != nil {
		return "", err
	}
	if err := docstore.ValidateFields(doc); err != nil {
		return "", err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("json marshal: %w", err)
	}
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	err = s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data, created_at_unixms, updated_at_unixms) VALUES (?, ?, ?, ?, ?)`,
			collection, id, string(b), now, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("append: %w", err)
	}
	s.hub.Notify(ctx, collection)
	return id, nil
}

// Patch merges fields into an existing document.
func (s *Store) Patch(ctx context.Context, collection, id string, fields docstore.Document) error {
	if err := docstore.ValidateName("collection", collection); err != nil {
		return err
	}
	if err := docstore.ValidateFields(fields); err != nil {
		return err
	}
	err := s.write(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var doc docstore.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("json unmarshal: %w", err)
		}
		if doc == nil {
			doc = docstore.Document{}
		}
		for k, v := range fields {
			doc[k] = v
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET data = ?, updated_at_unixms = ? WHERE collection = ? AND id = ?`,
			string(b), time.Now().UnixMilli(), collection, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	s.hub.Notify(ctx, collection)
	return nil
}

// Subscribe opens a live query.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	return s.hub.Subscribe(ctx, q)
}

// write runs fn in a transaction and bumps the version counter.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE meta SET v = CAST(CAST(v AS INTEGER) + 1 AS TEXT) WHERE k = 'version'`); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) load(ctx context.Context, collection string) ([]docstore.DocumentSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []docstore.DocumentSnapshot
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var doc docstore.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		out = append(out, docstore.DocumentSnapshot{ID: id, Data: doc})
	}
	return out, rows.Err()
}

func (s *Store) stamp(ctx context.Context) (string, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = 'version'`).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// Version returns the write counter.
func (s *Store) Version(ctx context.Context) (int64, error) {
	v, err := s.stamp(ctx)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}
