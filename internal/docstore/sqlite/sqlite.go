// Package sqlite stores documents as JSON rows in an embedded SQLite database
// and fans change notifications out to in-process subscribers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/containerlog/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

// watcher coalesces change notifications for one subscription.
type watcher struct {
	notify chan struct{}
}

func (w *watcher) signal() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:       db,
		now:      time.Now,
		logger:   logger,
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// SetClock replaces the clock used to resolve server timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	data, err := docstore.Marshal(docstore.Resolve(fields, s.now()))
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
	`, collection, id, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	s.changed(collection)
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, collection, id).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	fields, err := docstore.Unmarshal([]byte(data))
	if err != nil {
		return nil, err
	}
	return &docstore.Document{ID: id, Fields: fields}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if q.Where != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data FROM documents
			WHERE collection = ? AND json_extract(data, ?) = ?
		`, q.Collection, jsonPath(q.Where.Field), q.Where.Value)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data FROM documents WHERE collection = ?
		`, q.Collection)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("failed to close rows", "error", err)
		}
	}()

	var docs []docstore.Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := docstore.Unmarshal([]byte(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	// The SQL filter already applied; Apply re-checks it with the shared
	// equality rules and does the ordering.
	return docstore.Apply(docs, q), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var data string
	err = tx.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	current, err := docstore.Unmarshal([]byte(data))
	if err != nil {
		return err
	}
	merged, err := docstore.Marshal(docstore.Merge(current, docstore.Resolve(fields, s.now())))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = datetime('now') WHERE collection = ? AND id = ?
	`, string(merged), collection, id); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	s.changed(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return docstore.ErrNotFound
	}

	s.changed(collection)
	return nil
}

// Subscribe re-runs q after every write to its collection made through this
// Store. Bursts of writes collapse into a single snapshot.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error) {
	if q.Collection == "" {
		return nil, errors.New("subscribe: collection required")
	}

	w := &watcher{notify: make(chan struct{}, 1)}
	w.signal() // first snapshot is delivered immediately
	s.register(q.Collection, w)

	return docstore.NewSubscription(ctx, func(ctx context.Context, emit docstore.Emit) {
		defer s.unregister(q.Collection, w)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.notify:
			}

			docs, err := s.Query(ctx, q)
			if ctx.Err() != nil {
				return
			}
			snap := docstore.Snapshot{Docs: docs}
			if err != nil {
				s.logger.Warn("subscription query failed", "collection", q.Collection, "error", err)
				snap = docstore.Snapshot{Err: err}
			}
			if !emit(snap) {
				return
			}
		}
	}), nil
}

// Close releases nothing itself; the caller owns the *sql.DB.
func (s *Store) Close() error {
	return nil
}

func (s *Store) register(collection string, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.watchers[collection]
	if !ok {
		set = make(map[*watcher]struct{})
		s.watchers[collection] = set
	}
	set[w] = struct{}{}
}

func (s *Store) unregister(collection string, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[collection], w)
	if len(s.watchers[collection]) == 0 {
		delete(s.watchers, collection)
	}
}

// Subscribers reports the number of open subscriptions on collection.
func (s *Store) Subscribers(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[collection])
}

func (s *Store) changed(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers[collection] {
		w.signal()
	}
}

func jsonPath(field string) string {
	return fmt.Sprintf(`$."%s"`, field)
}
