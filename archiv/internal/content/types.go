// CLAUDE:SUMMARY Content Extractor: format detection, per-page PDF text with density anchors, HTML/DOCX/ODT/text readers and rule-based structured fields.
// CLAUDE:EXPORTS Extract, ExtractFile, Result, StructuredFields, Anchor, Hint, Options, Quality, Status, Level, ParserStatus, DetectFormat
// Package content turns stored document bytes into text and typed fields.
//
// Extract never fails: unreadable input is reported through Result.Status
// and Result.Quality so the document stays indexable by its metadata.
package content

import (
	"sort"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

const (
	PipelineVersion = "1.0"
	ParserVersion   = "1.0"
)

// Quality is the reliability tag of an extraction.
type Quality string

const (
	QualityOK          Quality = "ok"
	QualityDegraded    Quality = "degraded"
	QualityNeedsReview Quality = "needs_manual_review"
)

// Status is the extraction status.
type Status string

const (
	StatusOK          Status = "ok"
	StatusPartial     Status = "partial"
	StatusEmptyText   Status = "empty_text"
	StatusOCRNeeded   Status = "ocr_needed"
	StatusUnsupported Status = "unsupported_format"
	StatusError       Status = "error"
	StatusMissingFile Status = "missing_file"
)

// Level grades text or field coverage.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
	LevelFailed Level = "failed"
)

// ParserStatus is the outcome of the field rules.
type ParserStatus string

const (
	ParserOK              ParserStatus = "ok"
	ParserNoFields        ParserStatus = "no_structured_fields"
	ParserUnsupportedType ParserStatus = "unsupported_document_type"
	ParserEmptyText       ParserStatus = "empty_text"
)

// StructuredFields are the rule-extracted members of a prioritized document.
type StructuredFields struct {
	DecisionText       string  `json:"beschlusstext,omitempty"`
	Rationale          string  `json:"begruendung,omitempty"`
	FinancialReference string  `json:"finanzbezug,omitempty"`
	Responsibility     string  `json:"zustaendigkeit,omitempty"`
	Resolution         string  `json:"entscheidung,omitempty"`
	Title              string  `json:"titel,omitempty"`
	Quality            Quality `json:"quality,omitempty"`
}

func (f *StructuredFields) ref(key string) *string {
	switch key {
	case "beschlusstext":
		return &f.DecisionText
	case "begruendung":
		return &f.Rationale
	case "finanzbezug":
		return &f.FinancialReference
	case "zustaendigkeit":
		return &f.Responsibility
	case "entscheidung":
		return &f.Resolution
	case "titel":
		return &f.Title
	}
	return nil
}

// Get returns a member by its JSON key.
func (f StructuredFields) Get(key string) string {
	if p := f.ref(key); p != nil {
		return *p
	}
	return ""
}

// Matched returns the JSON keys of the non-empty members, sorted.
func (f StructuredFields) Matched() []string {
	var out []string
	for _, k := range []string{"beschlusstext", "begruendung", "finanzbezug", "zustaendigkeit", "entscheidung", "titel"} {
		if f.Get(k) != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Empty reports whether no member is set.
func (f StructuredFields) Empty() bool { return len(f.Matched()) == 0 }

// Anchor marks where a page or section sits in Result.Text.
type Anchor struct {
	Page        int    `json:"page,omitempty"`
	Section     string `json:"section,omitempty"`
	Offset      int    `json:"offset"`
	NeedsReview bool   `json:"needs_review,omitempty"`
}

// Hint carries what is known about the bytes besides the bytes.
type Hint struct {
	DocumentType doctype.Type
	ContentType  string
	Filename     string
	Title        string
}

// Options tune extraction.
type Options struct {
	MinPageChars int // pages below this many non-space chars are flagged. Default: 40.
	MaxTextChars int // 0 keeps the full text
}

func (o *Options) defaults() {
	if o.MinPageChars <= 0 {
		o.MinPageChars = 40
	}
}

// Result is the outcome of Extract.
type Result struct {
	Text            string           `json:"text"`
	Fields          StructuredFields `json:"structured_fields"`
	Quality         Quality          `json:"quality"`
	Anchors         []Anchor         `json:"anchors,omitempty"`
	Format          Format           `json:"format"`
	Status          Status           `json:"extraction_status"`
	ParsingQuality  Level            `json:"parsing_quality"`
	ParserStatus    ParserStatus     `json:"content_parser_status"`
	ParserQuality   Level            `json:"content_parser_quality"`
	MatchedSections []string         `json:"matched_sections,omitempty"`
	PageCount       int              `json:"page_count,omitempty"`
	CharCount       int              `json:"extracted_char_count"`
	OCRNeeded       bool             `json:"ocr_needed,omitempty"`
	Error           string           `json:"extraction_error,omitempty"`
}
