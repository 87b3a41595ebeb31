package index

import (
	"encoding/json"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

// Session is one row of the sessions table.
type Session struct {
	ID          string `json:"session_id"`
	Date        string `json:"date"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Committee   string `json:"committee"`
	MeetingName string `json:"meeting_name,omitempty"`
	StartTime   string `json:"start_time,omitempty"` // HH:MM
	Location    string `json:"location,omitempty"`
	DetailURL   string `json:"detail_url,omitempty"`
	Path        string `json:"session_path,omitempty"` // relative to the raw root
	Status      string `json:"status,omitempty"`
}

// AgendaItem is one row of the agenda_items table.
type AgendaItem struct {
	ID               int64   `json:"id"`
	SessionID        string  `json:"session_id"`
	TopNumber        string  `json:"top_number"`
	Title            string  `json:"title"`
	Reporter         string  `json:"reporter,omitempty"`
	RawStatus        string  `json:"status,omitempty"`
	Decision         *string `json:"decision"`
	DocumentsPresent bool    `json:"documents_present"`
	NeedsReview      bool    `json:"needs_review,omitempty"`
}

// Document is one row of the documents table joined with its session and
// the title of its agenda item.
type Document struct {
	ID               int64           `json:"id"`
	SessionID        string          `json:"session_id"`
	Date             string          `json:"date"`
	Committee        string          `json:"committee"`
	MeetingName      string          `json:"meeting_name,omitempty"`
	TopNumber        string          `json:"top_number,omitempty"`
	TopTitle         string          `json:"top_title,omitempty"`
	Title            string          `json:"title"`
	Category         string          `json:"category,omitempty"`
	DocumentType     doctype.Type    `json:"document_type"`
	URL              string          `json:"url"`
	LocalPath        string          `json:"local_path,omitempty"` // relative to the raw root
	SHA1             string          `json:"sha1,omitempty"`
	RetrievedAt      string          `json:"retrieved_at,omitempty"`
	ContentType      string          `json:"content_type,omitempty"`
	ContentLength    int64           `json:"content_length,omitempty"`
	ExtractionStatus string          `json:"extraction_status,omitempty"`
	ParsingQuality   string          `json:"parsing_quality,omitempty"`
	StructuredFields json.RawMessage `json:"structured_fields,omitempty"`
}

// Filter selects documents. Empty members do not restrict.
type Filter struct {
	SessionIDs       []string
	Committees       []string
	DateFrom         string // YYYY-MM-DD, inclusive
	DateTo           string // YYYY-MM-DD, inclusive
	DocumentTypes    []doctype.Type
	RequireLocalPath bool
	Limit            int
}

// SessionFilter selects sessions.
type SessionFilter struct {
	Year      int
	Month     int
	Committee string
	DateFrom  string
	DateTo    string
	Status    string
	Limit     int
}

// Stats are aggregate counters of the index.
type Stats struct {
	Sessions        int    `json:"sessions"`
	PartialSessions int    `json:"partial_sessions"`
	AgendaItems     int    `json:"agenda_items"`
	NeedsReview     int    `json:"agenda_items_needs_review"`
	Documents       int    `json:"documents"`
	LocalFiles      int    `json:"documents_with_local_file"`
	FirstDate       string `json:"first_date,omitempty"`
	LastDate        string `json:"last_date,omitempty"`
}
