// Package sqlite provides a polled lenz source backed by a SQLite query.
//
// A Source reports no changes. Views bound to one run in degraded mode,
// so pairing Load with View.Refresh is how new data reaches the output.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/zoobzio/lenz"
)

// Open opens a SQLite database at path with the pure-Go driver.
// Use ":memory:" for an in-memory database.
func Open(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

// Source materializes the rows of a query as a lenz collection. It
// satisfies only the snapshot contract: call Load to re-run the query,
// then Refresh on views bound to it.
type Source[S any] struct {
	db    *sql.DB
	query string
	scan  func(*sql.Rows) (S, error)

	mu    sync.RWMutex
	items []S
}

// New creates a Source over db. scan converts the current row of the
// query's result set into an element.
func New[S any](db *sql.DB, query string, scan func(*sql.Rows) (S, error)) *Source[S] {
	return &Source[S]{
		db:    db,
		query: query,
		scan:  scan,
	}
}

// Load re-runs the query and replaces the materialized rows. On error
// the previous rows are kept.
func (s *Source[S]) Load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var items []S
	for rows.Next() {
		item, err := s.scan(rows)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Len returns the number of materialized rows.
func (s *Source[S]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of the materialized rows in query order.
func (s *Source[S]) Snapshot() []S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]S, len(s.items))
	copy(out, s.items)
	return out
}

var _ lenz.Collection[int] = (*Source[int])(nil)
