package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertSession inserts or replaces the session row. Year and month are
// derived from the date when unset.
func (ix *Index) UpsertSession(ctx context.Context, s Session) error {
	return upsertSession(ctx, ix.db, s)
}

// InsertAgendaItem adds one agenda item; its session must exist.
func (ix *Index) InsertAgendaItem(ctx context.Context, a AgendaItem) error {
	return insertAgendaItem(ctx, ix.db, a)
}

// InsertDocument adds one document; its session must exist. The type is
// normalized with the rule Build uses.
func (ix *Index) InsertDocument(ctx context.Context, d Document) error {
	return insertDocument(ctx, ix.db, d)
}

func upsertSession(ctx context.Context, db execer, s Session) error {
	if s.ID == "" {
		return fmt.Errorf("index: session without id")
	}
	if s.Year == 0 && s.Month == 0 {
		s.Year, s.Month = splitDate(s.Date)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, date, year, month, committee, meeting_name,
		start_time, location, detail_url, session_path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			date = excluded.date, year = excluded.year, month = excluded.month,
			committee = excluded.committee, meeting_name = excluded.meeting_name,
			start_time = excluded.start_time, location = excluded.location,
			detail_url = excluded.detail_url, session_path = excluded.session_path,
			status = excluded.status`,
		s.ID, s.Date, s.Year, s.Month, s.Committee, s.MeetingName,
		s.StartTime, s.Location, s.DetailURL, s.Path, s.Status,
	)
	if err != nil {
		return fmt.Errorf("index: upsert session %s: %w", s.ID, err)
	}
	return nil
}

func insertAgendaItem(ctx context.Context, db execer, a AgendaItem) error {
	var decision any
	if a.Decision != nil {
		decision = *a.Decision
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO agenda_items (session_id, number, top_number, title, reporter, status,
		decision, documents_present, needs_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.TopNumber, a.TopNumber, a.Title, a.Reporter, a.RawStatus,
		decision, a.DocumentsPresent, a.NeedsReview,
	)
	if err != nil {
		return fmt.Errorf("index: insert agenda item %s/%s: %w", a.SessionID, a.TopNumber, err)
	}
	return nil
}

func insertDocument(ctx context.Context, db execer, d Document) error {
	d.DocumentType = classifyDocument(string(d.DocumentType), doctype.Hints{
		Title: d.Title, Category: d.Category, ContentType: d.ContentType, URL: d.URL, Path: d.LocalPath,
	})
	var fields any
	if len(d.StructuredFields) > 0 {
		fields = string(d.StructuredFields)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO documents (session_id, title, category, agenda_item, top_number, url,
		local_path, content_type, content_length, document_type, sha1, retrieved_at,
		extraction_status, parsing_quality, structured_fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SessionID, d.Title, d.Category, d.TopNumber, d.TopNumber, d.URL,
		d.LocalPath, d.ContentType, d.ContentLength, string(d.DocumentType), d.SHA1, d.RetrievedAt,
		nullIfEmpty(d.ExtractionStatus), nullIfEmpty(d.ParsingQuality), fields,
	)
	if err != nil {
		return fmt.Errorf("index: insert document %s: %w", d.URL, err)
	}
	return nil
}

func deleteSessionRows(ctx context.Context, db execer, sessionID string) error {
	for _, q := range []string{
		`DELETE FROM documents WHERE session_id = ?`,
		`DELETE FROM agenda_items WHERE session_id = ?`,
	} {
		if _, err := db.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("index: clear session %s: %w", sessionID, err)
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// splitDate returns year and month of a YYYY-MM-DD date, or zeros.
func splitDate(date string) (int, int) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return y, m
}
