package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/dbopen"
)

// ErrMigrationConflict is matched by every *MigrationConflictError.
var ErrMigrationConflict = errors.New("index: migration conflict")

// MigrationConflictError reports existing data a migration step cannot
// map. The step is rolled back; earlier steps stay committed.
type MigrationConflictError struct {
	Version int
	Name    string
	Column  string
	Values  []string
}

func (e *MigrationConflictError) Error() string {
	return fmt.Sprintf("index: migration %d (%s): unexpected %s values %q", e.Version, e.Name, e.Column, e.Values)
}

func (e *MigrationConflictError) Unwrap() error { return ErrMigrationConflict }

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations are applied in order; each is recorded once applied.
var migrations = []migration{
	{1, "base_tables", execStep(baseTables)},
	{2, "document_provenance_columns", addColumns(
		column{"documents", "document_type", "TEXT"},
		column{"documents", "sha1", "TEXT"},
		column{"documents", "retrieved_at", "TEXT"},
	)},
	{3, "top_number_columns", topNumberColumns},
	{4, "session_status_column", addColumns(
		column{"sessions", "status", "TEXT NOT NULL DEFAULT ''"},
	)},
	{5, "extraction_columns", addColumns(
		column{"documents", "extraction_status", "TEXT"},
		column{"documents", "parsing_quality", "TEXT"},
		column{"documents", "structured_fields", "TEXT"},
	)},
	{6, "query_indexes", execStep(queryIndexes)},
	{7, "legacy_document_types", legacyDocumentTypes},
	{8, "backfill_document_type", backfillDocumentType},
	{9, "agenda_review_column", addColumns(
		column{"agenda_items", "needs_review", "INTEGER NOT NULL DEFAULT 0"},
	)},
}

// baseTables is the shape older index builds created. Columns added later
// arrive through their own steps so legacy databases converge.
const baseTables = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    session_id   TEXT PRIMARY KEY,
    date         TEXT,
    year         INTEGER,
    month        INTEGER,
    committee    TEXT,
    meeting_name TEXT,
    start_time   TEXT,
    location     TEXT,
    detail_url   TEXT,
    session_path TEXT
);

CREATE TABLE IF NOT EXISTS agenda_items (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id        TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    number            TEXT,
    title             TEXT,
    reporter          TEXT,
    status            TEXT,
    decision          TEXT,
    documents_present INTEGER
);

CREATE TABLE IF NOT EXISTS documents (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id     TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    title          TEXT,
    category       TEXT,
    agenda_item    TEXT,
    url            TEXT,
    local_path     TEXT,
    content_type   TEXT,
    content_length INTEGER
);
`

const queryIndexes = `
CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date);
CREATE INDEX IF NOT EXISTS idx_sessions_committee ON sessions(committee);
CREATE INDEX IF NOT EXISTS idx_sessions_year_month ON sessions(year, month);
CREATE INDEX IF NOT EXISTS idx_agenda_session ON agenda_items(session_id, top_number);
CREATE INDEX IF NOT EXISTS idx_docs_session ON documents(session_id, top_number);
CREATE INDEX IF NOT EXISTS idx_docs_type ON documents(document_type);
CREATE INDEX IF NOT EXISTS idx_docs_sha1 ON documents(sha1);
`

// Migrate applies pending migrations, one transaction per step, and
// returns the names of the steps it applied. A step that hits a
// MigrationConflictError is rolled back and left unrecorded while the later
// steps still apply; the conflicts are returned joined and kept for
// Conflicts. Any other failure stops the pass.
func (ix *Index) Migrate(ctx context.Context) ([]string, error) {
	if _, err := ix.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return nil, fmt.Errorf("index: create schema_migrations: %w", err)
	}
	var (
		applied   []string
		conflicts []*MigrationConflictError
	)
	for _, m := range migrations {
		done := false
		err := dbopen.RunTx(ctx, ix.db, func(tx *sql.Tx) error {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				done = true
				return nil
			}
			if err := m.apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			var conflict *MigrationConflictError
			if errors.As(err, &conflict) {
				ix.logger.Error("index: migration conflict", "version", m.version, "name", m.name, "values", conflict.Values)
				conflicts = append(conflicts, conflict)
				continue
			}
			return applied, fmt.Errorf("index: migration %d (%s): %w", m.version, m.name, err)
		}
		if !done {
			ix.logger.Info("index: migration applied", "version", m.version, "name", m.name)
			applied = append(applied, m.name)
		}
	}

	ix.mu.Lock()
	ix.conflicts = conflicts
	ix.mu.Unlock()
	if len(conflicts) == 0 {
		return applied, nil
	}
	errs := make([]error, len(conflicts))
	for i, c := range conflicts {
		errs[i] = c
	}
	return applied, errors.Join(errs...)
}

// Conflicts returns the conflicts left pending by the last Migrate pass.
func (ix *Index) Conflicts() []*MigrationConflictError {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return append([]*MigrationConflictError(nil), ix.conflicts...)
}

// AppliedMigrations lists the recorded versions in order.
func (ix *Index) AppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func execStep(ddl string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, ddl)
		return err
	}
}

type column struct{ table, name, def string }

// addColumns adds the columns a table does not have yet.
func addColumns(cols ...column) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range cols {
			if err := addColumn(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	}
}

func addColumn(ctx context.Context, tx *sql.Tx, c column) error {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.name).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.def))
	return err
}

func topNumberColumns(ctx context.Context, tx *sql.Tx) error {
	if err := addColumns(
		column{"agenda_items", "top_number", "TEXT"},
		column{"documents", "top_number", "TEXT"},
	)(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE agenda_items SET top_number = COALESCE(number, '')
		WHERE top_number IS NULL OR top_number = ''`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE documents SET top_number = COALESCE(agenda_item, '')
		WHERE top_number IS NULL OR top_number = ''`)
	return err
}

// legacyDocumentTypes rewrites stored labels to their canonical form.
func legacyDocumentTypes(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT document_type FROM documents
		WHERE document_type IS NOT NULL AND TRIM(document_type) != ''`)
	if err != nil {
		return err
	}
	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			rows.Close()
			return err
		}
		labels = append(labels, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var unknown []string
	rewrite := make(map[string]doctype.Type)
	for _, l := range labels {
		t, ok := doctype.Canonical(l)
		switch {
		case !ok:
			unknown = append(unknown, l)
		case string(t) != l:
			rewrite[l] = t
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &MigrationConflictError{Version: 7, Name: "legacy_document_types", Column: "documents.document_type", Values: unknown}
	}
	for from, to := range rewrite {
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET document_type = ? WHERE document_type = ?`, string(to), from); err != nil {
			return err
		}
	}
	return nil
}

// backfillDocumentType classifies rows without a type using the rule
// applied to new rows.
func backfillDocumentType(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, COALESCE(title, ''), COALESCE(category, ''),
		COALESCE(content_type, ''), COALESCE(url, ''), COALESCE(local_path, '')
		FROM documents WHERE document_type IS NULL OR TRIM(document_type) = ''`)
	if err != nil {
		return err
	}
	type pending struct {
		id int64
		t  doctype.Type
	}
	var todo []pending
	for rows.Next() {
		var id int64
		var h doctype.Hints
		if err := rows.Scan(&id, &h.Title, &h.Category, &h.ContentType, &h.URL, &h.Path); err != nil {
			rows.Close()
			return err
		}
		todo = append(todo, pending{id, doctype.Classify(h)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range todo {
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET document_type = ? WHERE id = ?`, string(p.t), p.id); err != nil {
			return err
		}
	}
	return nil
}

// classifyDocument is the type rule for new rows: a stored label is kept
// when it maps to a canonical type, otherwise the hints decide.
func classifyDocument(label string, h doctype.Hints) doctype.Type {
	if t, ok := doctype.Canonical(label); ok {
		return t
	}
	return doctype.Classify(h)
}
