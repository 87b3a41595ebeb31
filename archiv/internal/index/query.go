// CLAUDE:SUMMARY Read queries over the index: filtered documents with top titles, sessions, agenda items, type distribution, stats.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

const documentColumns = `d.id, d.session_id, COALESCE(s.date, ''), COALESCE(s.committee, ''),
	COALESCE(s.meeting_name, ''), COALESCE(d.top_number, ''),
	COALESCE((SELECT a.title FROM agenda_items a
		WHERE a.session_id = d.session_id AND a.top_number = d.top_number
		ORDER BY a.id LIMIT 1), ''),
	COALESCE(d.title, ''), COALESCE(d.category, ''), COALESCE(d.document_type, ''),
	COALESCE(d.url, ''), COALESCE(d.local_path, ''), COALESCE(d.sha1, ''),
	COALESCE(d.retrieved_at, ''), COALESCE(d.content_type, ''), COALESCE(d.content_length, 0),
	COALESCE(d.extraction_status, ''), COALESCE(d.parsing_quality, ''), COALESCE(d.structured_fields, '')`

// where collects SQL conditions and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(col string, values []string) {
	if len(values) == 0 {
		return
	}
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.add(col+" IN ("+ph+")", args...)
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Documents returns the documents matching f ordered by date, session,
// TOP number, title and URL.
func (ix *Index) Documents(ctx context.Context, f Filter) ([]Document, error) {
	var w where
	w.in("d.session_id", f.SessionIDs)
	w.in("s.committee", f.Committees)
	if f.DateFrom != "" {
		w.add("s.date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		w.add("s.date <= ?", f.DateTo)
	}
	types := make([]string, len(f.DocumentTypes))
	for i, t := range f.DocumentTypes {
		types[i] = string(t)
	}
	w.in("d.document_type", types)
	if f.RequireLocalPath {
		w.add("COALESCE(TRIM(d.local_path), '') != ''")
	}

	q := `SELECT ` + documentColumns + `
		FROM documents d JOIN sessions s ON s.session_id = d.session_id` + w.sql() + `
		ORDER BY s.date, s.session_id, COALESCE(d.top_number, ''), d.title, d.url, d.id`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := ix.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("index: query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var typ, fields string
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Date, &d.Committee, &d.MeetingName,
			&d.TopNumber, &d.TopTitle, &d.Title, &d.Category, &typ, &d.URL, &d.LocalPath,
			&d.SHA1, &d.RetrievedAt, &d.ContentType, &d.ContentLength,
			&d.ExtractionStatus, &d.ParsingQuality, &fields); err != nil {
			return nil, err
		}
		d.DocumentType = doctype.Type(typ)
		if fields != "" {
			d.StructuredFields = []byte(fields)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const sessionColumns = `session_id, COALESCE(date, ''), COALESCE(year, 0), COALESCE(month, 0),
	COALESCE(committee, ''), COALESCE(meeting_name, ''), COALESCE(start_time, ''),
	COALESCE(location, ''), COALESCE(detail_url, ''), COALESCE(session_path, ''), COALESCE(status, '')`

type scanner interface{ Scan(dest ...any) error }

func scanSession(sc scanner) (Session, error) {
	var s Session
	err := sc.Scan(&s.ID, &s.Date, &s.Year, &s.Month, &s.Committee, &s.MeetingName,
		&s.StartTime, &s.Location, &s.DetailURL, &s.Path, &s.Status)
	return s, err
}

// Sessions returns the sessions matching f ordered by date and ID.
func (ix *Index) Sessions(ctx context.Context, f SessionFilter) ([]Session, error) {
	var w where
	if f.Year > 0 {
		w.add("year = ?", f.Year)
	}
	if f.Month > 0 {
		w.add("month = ?", f.Month)
	}
	if f.Committee != "" {
		w.add("committee = ?", f.Committee)
	}
	if f.DateFrom != "" {
		w.add("date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		w.add("date <= ?", f.DateTo)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	q := `SELECT ` + sessionColumns + ` FROM sessions` + w.sql() + ` ORDER BY date, session_id`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := ix.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("index: query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Session returns one session or ErrNotFound.
func (ix *Index) Session(ctx context.Context, id string) (*Session, error) {
	s, err := scanSession(ix.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AgendaItems returns the agenda of a session in insertion order.
func (ix *Index) AgendaItems(ctx context.Context, sessionID string) ([]AgendaItem, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, session_id, COALESCE(top_number, COALESCE(number, '')), COALESCE(title, ''),
		COALESCE(reporter, ''), COALESCE(status, ''), decision,
		COALESCE(documents_present, 0), COALESCE(needs_review, 0)
		FROM agenda_items WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("index: query agenda items: %w", err)
	}
	defer rows.Close()

	var out []AgendaItem
	for rows.Next() {
		var a AgendaItem
		var decision sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &a.TopNumber, &a.Title, &a.Reporter,
			&a.RawStatus, &decision, &a.DocumentsPresent, &a.NeedsReview); err != nil {
			return nil, err
		}
		if decision.Valid && decision.String != "" {
			v := decision.String
			a.Decision = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TypeDistribution counts documents per document type.
func (ix *Index) TypeDistribution(ctx context.Context) (map[doctype.Type]int, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT COALESCE(document_type, ''), COUNT(*) FROM documents GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("index: type distribution: %w", err)
	}
	defer rows.Close()

	out := make(map[doctype.Type]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[doctype.Type(t)] = n
	}
	return out, rows.Err()
}

// Stats returns aggregate counters.
func (ix *Index) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(status = 'partial'), 0),
		COALESCE(MIN(date), ''), COALESCE(MAX(date), '') FROM sessions`).
		Scan(&st.Sessions, &st.PartialSessions, &st.FirstDate, &st.LastDate)
	if err != nil {
		return nil, fmt.Errorf("index: stats: %w", err)
	}
	err = ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(needs_review != 0), 0) FROM agenda_items`).
		Scan(&st.AgendaItems, &st.NeedsReview)
	if err != nil {
		return nil, fmt.Errorf("index: stats: %w", err)
	}
	err = ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(COALESCE(TRIM(local_path), '') != ''), 0) FROM documents`).
		Scan(&st.Documents, &st.LocalFiles)
	if err != nil {
		return nil, fmt.Errorf("index: stats: %w", err)
	}
	return &st, nil
}
