package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/Makepad-fr/tadalive/internal/docstore"
)

// JSON-backed storage. Single file, human-readable, portable.
// No cross-process locking; fine for a local single-user CLI. Writes are
// atomic renames so a reader never sees a torn file.

// DataFileName is the default file name inside the data directory.
const DataFileName = "todos.json"

type fileData struct {
	// Version goes up on every write so pollers notice rewrites that keep
	// the file size and land within the same mtime tick.
	Version     int64                                   `json:"version"`
	Collections map[string]map[string]docstore.Document `json:"collections"`
}

// Options configures Open.
type Options struct {
	PollInterval time.Duration // 0 disables change detection
	Logger       *slog.Logger
}

// Store implements docstore.Service on top of one JSON file.
type Store struct {
	path string
	mu   sync.Mutex
	hub  *docstore.Hub
}

var _ docstore.Service = (*Store)(nil)

// Open prepares a store at path. The file is created on first write.
func Open(path string, opt Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	s := &Store{path: path}
	opts := []docstore.HubOption{docstore.WithLogger(opt.Logger)}
	if opt.PollInterval > 0 {
		opts = append(opts, docstore.WithPolling(s.stamp, opt.PollInterval))
	}
	s.hub = docstore.NewHub(s.loadCollection, opts...)
	return s, nil
}

// Close stops live queries.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) read() (fileData, error) {
	fd := fileData{Collections: map[string]map[string]docstore.Document{}}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fd, nil
		}
		return fd, fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(b, &fd); err != nil {
		return fd, fmt.Errorf("json unmarshal: %w", err)
	}
	if fd.Collections == nil {
		fd.Collections = map[string]map[string]docstore.Document{}
	}
	return fd, nil
}

func (s *Store) save(fd fileData) error {
	fd.Version++
	b, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Append stores doc under a fresh id.
func (s *Store) Append(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	if err := docstore.ValidateName("collection", collection); err != nil {
		return "", err
	}
	if err := docstore.ValidateFields(doc); err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	fd, err := s.read()
	if err == nil {
		c := fd.Collections[collection]
		if c == nil {
			c = map[string]docstore.Document{}
			fd.Collections[collection] = c
		}
		c[id] = doc.Clone()
		err = s.save(fd)
	}
	s.mu.Unlock()
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

	s.mu.Lock()
	fd, err := s.read()
	if err == nil {
		doc, ok := fd.Collections[collection][id]
		if !ok {
			err = fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		} else {
			if doc == nil {
				doc = docstore.Document{}
			}
			for k, v := range fields {
				doc[k] = v
			}
			fd.Collections[collection][id] = doc
			err = s.save(fd)
		}
	}
	s.mu.Unlock()
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

func (s *Store) loadCollection(_ context.Context, collection string) ([]docstore.DocumentSnapshot, error) {
	s.mu.Lock()
	fd, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := fd.Collections[collection]
	out := make([]docstore.DocumentSnapshot, 0, len(c))
	for id, doc := range c {
		out = append(out, docstore.DocumentSnapshot{ID: id, Data: doc})
	}
	return out, nil
}

// stamp combines the write counter with mtime and size; the latter still
// catch hand edits that leave the counter alone.
func (s *Store) stamp(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	fd, err := s.read()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d:%d", fd.Version, fi.ModTime().UnixNano(), fi.Size()), nil
}
