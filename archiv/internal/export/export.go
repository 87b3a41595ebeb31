// CLAUDE:SUMMARY Batch Exporter: filtered, deterministic JSON snapshots of the index with optional fresh content extraction, plus re-import.
// CLAUDE:EXPORTS Exporter, New, Filter, Batch, Record, WriteFile, ReadFile, Import, ErrInvalidFilter
// Package export produces batch files from the index.
//
// The index is only read. With IncludeText every selected file is extracted
// at export time; nothing is cached between exports.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/content"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
	"github.com/hazyhaar/ratsarchiv/safeio"
)

// extractWorkers bounds concurrent extractions.
const extractWorkers = 4

// Record is one exported document.
type Record struct {
	SessionID     string       `json:"session_id"`
	Date          string       `json:"date"`
	Committee     string       `json:"committee"`
	MeetingName   string       `json:"meeting_name,omitempty"`
	TopNumber     string       `json:"top_number"`
	TopTitle      string       `json:"top_title,omitempty"`
	Title         string       `json:"title"`
	Category      string       `json:"category,omitempty"`
	DocumentType  doctype.Type `json:"document_type"`
	URL           string       `json:"url"`
	LocalPath     string       `json:"local_path"`
	SHA1          string       `json:"sha1"`
	RetrievedAt   string       `json:"retrieved_at"`
	ContentType   string       `json:"content_type,omitempty"`
	ContentLength int64        `json:"content_length,omitempty"`

	ExtractionStatus     content.Status            `json:"extraction_status,omitempty"`
	ParsingQuality       content.Level             `json:"parsing_quality,omitempty"`
	ContentParserStatus  content.ParserStatus      `json:"content_parser_status,omitempty"`
	ContentParserQuality content.Level             `json:"content_parser_quality,omitempty"`
	StructuredFields     *content.StructuredFields `json:"structured_fields,omitempty"`
	MatchedSections      []string                  `json:"matched_sections,omitempty"`
	PageCount            int                       `json:"page_count,omitempty"`
	CharCount            int                       `json:"extracted_char_count,omitempty"`
	Text                 string                    `json:"text,omitempty"`
	ExtractionError      string                    `json:"extraction_error,omitempty"`
}

// Batch is a frozen export snapshot.
type Batch struct {
	GeneratedAt string   `json:"generated_at"`
	SourceDB    string   `json:"source_db"`
	Filters     Filter   `json:"filters"`
	Documents   []Record `json:"documents"`
}

// Exporter reads the index and the raw artifact tree.
type Exporter struct {
	idx      *index.Index
	rawRoot  string
	sourceDB string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Exporter. sourceDB is echoed into every batch.
func New(idx *index.Index, rawRoot, sourceDB string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{idx: idx, rawRoot: rawRoot, sourceDB: sourceDB, logger: logger, now: time.Now}
}

// Export selects documents by f. Rows are ordered by date, session, TOP
// number, title and URL; extraction keeps that order.
func (e *Exporter) Export(ctx context.Context, f Filter) (*Batch, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	docs, err := e.idx.Documents(ctx, f.Query())
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	records := make([]Record, len(docs))
	for i, d := range docs {
		records[i] = recordFrom(d)
	}
	if f.IncludeText {
		if err := e.extractAll(ctx, records, f.MaxTextChars); err != nil {
			return nil, err
		}
	}

	e.logger.Info("export: batch built", "documents", len(records), "include_text", f.IncludeText)
	return &Batch{
		GeneratedAt: e.now().UTC().Format(time.RFC3339),
		SourceDB:    e.sourceDB,
		Filters:     f,
		Documents:   records,
	}, nil
}

func recordFrom(d index.Document) Record {
	return Record{
		SessionID:     d.SessionID,
		Date:          d.Date,
		Committee:     d.Committee,
		MeetingName:   d.MeetingName,
		TopNumber:     d.TopNumber,
		TopTitle:      d.TopTitle,
		Title:         d.Title,
		Category:      d.Category,
		DocumentType:  d.DocumentType,
		URL:           d.URL,
		LocalPath:     d.LocalPath,
		SHA1:          d.SHA1,
		RetrievedAt:   d.RetrievedAt,
		ContentType:   d.ContentType,
		ContentLength: d.ContentLength,
	}
}

// extractAll fills the extraction members of every record in place.
func (e *Exporter) extractAll(ctx context.Context, records []Record, maxText int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(extractWorkers)
	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.extract(&records[i], maxText)
			return nil
		})
	}
	return g.Wait()
}

func missingFile(reason string) *content.Result {
	return &content.Result{
		Status:         content.StatusMissingFile,
		Quality:        content.QualityDegraded,
		ParsingQuality: content.LevelFailed,
		ParserStatus:   content.ParserEmptyText,
		ParserQuality:  content.LevelFailed,
		Error:          reason,
	}
}

func (e *Exporter) extract(r *Record, maxText int) {
	var res *content.Result
	abs, err := safeio.SafePath(e.rawRoot, r.LocalPath)
	switch {
	case r.LocalPath == "":
		res = missingFile("no local file recorded")
	case err != nil:
		res = missingFile(err.Error())
	default:
		res = content.ExtractFile(abs, content.Hint{
			DocumentType: r.DocumentType,
			ContentType:  r.ContentType,
			Filename:     path.Base(r.LocalPath),
			Title:        r.Title,
		}, content.Options{MaxTextChars: maxText})
	}

	r.ExtractionStatus = res.Status
	r.ParsingQuality = res.ParsingQuality
	r.ContentParserStatus = res.ParserStatus
	r.ContentParserQuality = res.ParserQuality
	r.MatchedSections = res.MatchedSections
	r.PageCount = res.PageCount
	r.CharCount = res.CharCount
	r.ExtractionError = res.Error
	if maxText > 0 {
		r.Text = res.Text
	}
	if !res.Fields.Empty() {
		fields := res.Fields
		r.StructuredFields = &fields
	}
	if res.Quality == content.QualityDegraded {
		e.logger.Warn("export: extraction degraded", "url", r.URL, "session_id", r.SessionID,
			"status", res.Status, "error", res.Error)
	}
}
