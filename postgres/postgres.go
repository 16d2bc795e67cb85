// Package postgres projects a PostgreSQL key/value table into a live
// lenz source using LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zoobzio/lenz"
)

// Source mirrors the rows of a key/value table as key-sorted lenz
// entries. A trigger notifies with the changed row's key; the source
// re-fetches just that row, so downstream views see per-key patches.
//
// Example trigger setup:
//
//	CREATE OR REPLACE FUNCTION notify_entries_change() RETURNS trigger AS $$
//	BEGIN
//	    IF TG_OP = 'DELETE' THEN
//	        PERFORM pg_notify('entries_changed', OLD.key);
//	        RETURN OLD;
//	    END IF;
//	    PERFORM pg_notify('entries_changed', NEW.key);
//	    RETURN NEW;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER entries_change_trigger
//	    AFTER INSERT OR UPDATE OR DELETE ON entries
//	    FOR EACH ROW EXECUTE FUNCTION notify_entries_change();
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	pool    *pgxpool.Pool
	channel string
	table   string
	kv      *lenz.KV

	lastError atomic.Pointer[error]
}

// Option configures a Source.
type Option func(*Source)

// WithTable sets the table name to query for entries.
// Defaults to "entries".
func WithTable(table string) Option {
	return func(s *Source) {
		s.table = table
	}
}

// New creates a Source for the given notification channel. The channel
// should match the channel used in pg_notify.
func New(pool *pgxpool.Pool, channel string, opts ...Option) *Source {
	s := &Source{
		pool:    pool,
		channel: channel,
		table:   "entries",
		kv:      lenz.NewKV(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current entries in key order.
func (s *Source) Snapshot() []lenz.Entry {
	return s.kv.Snapshot()
}

// Get returns the value stored under key and whether it is present.
func (s *Source) Get(key string) (string, bool) {
	return s.kv.Get(key)
}

// OnChanged registers a structural change handler.
func (s *Source) OnChanged(fn func(context.Context, lenz.Change[lenz.Entry]) error) (cancel func()) {
	return s.kv.OnChanged(fn)
}

// LastError returns the last watch or delivery error, or nil.
func (s *Source) LastError() error {
	ptr := s.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Start begins listening on the notification channel, reads the table
// once synchronously, then applies per-row refreshes until ctx ends.
// Listening before the read means no update between the two is lost.
func (s *Source) Start(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", s.channel)); err != nil {
		conn.Release()
		return fmt.Errorf("failed to listen on channel %s: %w", s.channel, err)
	}

	if err := s.sync(ctx); err != nil {
		conn.Release()
		return err
	}

	go s.watch(ctx, conn)

	return nil
}

func (s *Source) sync(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT key, value FROM %s", s.table))
	if err != nil {
		return fmt.Errorf("failed to read table %s: %w", s.table, err)
	}
	defer rows.Close()

	var entries []lenz.Entry
	for rows.Next() {
		var e lenz.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read table %s: %w", s.table, err)
	}

	return s.kv.Sync(ctx, entries)
}

// refresh re-fetches a single row. A missing row means it was deleted.
func (s *Source) refresh(ctx context.Context, key string) error {
	var value string
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.table)
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.kv.Delete(ctx, key)
	}
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, key, value)
}

func (s *Source) watch(ctx context.Context, conn *pgxpool.Conn) {
	defer conn.Release()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
			continue
		}

		if err := s.refresh(ctx, notification.Payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
		}
	}
}

func (s *Source) setError(err error) {
	e := err
	s.lastError.Store(&e)
}

var (
	_ lenz.Collection[lenz.Entry]     = (*Source)(nil)
	_ lenz.ChangeNotifier[lenz.Entry] = (*Source)(nil)
)
