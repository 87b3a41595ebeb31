// CLAUDE:SUMMARY Index Builder: SQLite projection of manifests and agenda summaries with versioned migrations and filter queries.
// CLAUDE:EXPORTS Index, Open, New, Session, AgendaItem, Document, Filter, SessionFilter, Stats, BuildOptions, BuildStats, MigrationConflictError, ErrNotFound
// Package index projects the raw artifact tree into a queryable SQLite store.
//
// The store is only ever rebuilt from manifests and agenda summaries (Build)
// or loaded from an export batch (UpsertSession, InsertAgendaItem,
// InsertDocument). Schema changes are versioned migrations recorded in
// schema_migrations; Open applies the pending ones.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/ratsarchiv/dbopen"
)

// ErrNotFound is returned by Session for an unknown session ID.
var ErrNotFound = errors.New("index: not found")

// Index wraps the index database.
type Index struct {
	db     *sql.DB
	logger *slog.Logger

	mu        sync.Mutex
	conflicts []*MigrationConflictError
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// Open opens or creates the index at path and applies pending migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Index, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	ix, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// New wraps an open database and applies pending migrations. Migration
// conflicts do not prevent opening: the conflicting steps stay pending and
// are reported by Conflicts.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Index, error) {
	ix := &Index{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(ix)
	}
	if _, err := ix.Migrate(ctx); err != nil {
		if !errors.Is(err, ErrMigrationConflict) {
			return nil, err
		}
		ix.logger.Warn("index: opened with pending migrations", "conflicts", len(ix.Conflicts()))
	}
	return ix, nil
}

// DB exposes the underlying database.
func (ix *Index) DB() *sql.DB { return ix.db }

// Close closes the database.
func (ix *Index) Close() error { return ix.db.Close() }
