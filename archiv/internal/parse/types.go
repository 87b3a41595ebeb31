// CLAUDE:SUMMARY Page Parser: turns overview and detail pages of the council portal into typed records via ordered structural strategies.
// CLAUDE:EXPORTS SessionReference, AgendaItem, DocumentReference, SessionDetail, Decision, ParseOverview, ParseDetail, InferDecision, ErrStructuralMismatch
// Package parse converts raw portal HTML into session, agenda and document records.
//
// Markup differs between portal deployments, so every page kind is parsed
// by an ordered list of strategies. Each strategy declares a structural
// precondition; the first one that holds is applied. New deployment
// variants are supported by appending a strategy.
package parse

import (
	"errors"
	"net/url"
	"strings"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

// ErrStructuralMismatch is returned when no strategy matches a page.
var ErrStructuralMismatch = errors.New("parse: no parsing strategy matched the page structure")

// SessionReference identifies one session as listed on an overview page.
type SessionReference struct {
	ID          string `json:"id"`
	Committee   string `json:"committee"`
	MeetingName string `json:"meeting_name"`
	Date        string `json:"date"` // YYYY-MM-DD
	StartTime   string `json:"start_time,omitempty"`
	Location    string `json:"location,omitempty"`
	DetailURL   string `json:"detail_url"`
}

// Year returns the YYYY part of the session date.
func (s SessionReference) Year() string {
	if len(s.Date) >= 4 {
		return s.Date[:4]
	}
	return ""
}

// Month returns the MM part of the session date.
func (s SessionReference) Month() string {
	if len(s.Date) >= 7 {
		return s.Date[5:7]
	}
	return ""
}

// Merge returns s with empty fields filled from other.
func (s SessionReference) Merge(other SessionReference) SessionReference {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&s.ID, other.ID)
	fill(&s.Committee, other.Committee)
	fill(&s.MeetingName, other.MeetingName)
	fill(&s.Date, other.Date)
	fill(&s.StartTime, other.StartTime)
	fill(&s.Location, other.Location)
	fill(&s.DetailURL, other.DetailURL)
	return s
}

// Decision is the outcome inferred from an agenda item's raw status.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Ptr returns nil for DecisionNone, so JSON renders null.
func (d Decision) Ptr() *string {
	if d == DecisionNone {
		return nil
	}
	s := string(d)
	return &s
}

// DocumentReference points at a downloadable document.
type DocumentReference struct {
	Title     string       `json:"title"`
	Category  string       `json:"category,omitempty"`
	Type      doctype.Type `json:"document_type"`
	URL       string       `json:"url"`
	TopNumber string       `json:"top_number,omitempty"` // empty for session-level documents
}

// AgendaItem is one TOP of a session.
type AgendaItem struct {
	Number      string              `json:"number"`
	Title       string              `json:"title"`
	Reporter    string              `json:"reporter,omitempty"`
	RawStatus   string              `json:"raw_status,omitempty"`
	Decision    Decision            `json:"decision,omitempty"`
	NeedsReview bool                `json:"needs_review,omitempty"`
	Documents   []DocumentReference `json:"documents,omitempty"`
}

// HasDocuments reports whether documents are attached to the item.
func (a AgendaItem) HasDocuments() bool { return len(a.Documents) > 0 }

// SessionDetail is the parsed detail page of one session.
type SessionDetail struct {
	Session          SessionReference    `json:"session"`
	Strategy         string              `json:"strategy"`
	Agenda           []AgendaItem        `json:"agenda"`
	SessionDocuments []DocumentReference `json:"session_documents"`
}

// AllDocuments lists session-level documents first, then agenda documents
// in agenda order.
func (d *SessionDetail) AllDocuments() []DocumentReference {
	out := make([]DocumentReference, 0, len(d.SessionDocuments))
	out = append(out, d.SessionDocuments...)
	for _, item := range d.Agenda {
		out = append(out, item.Documents...)
	}
	return out
}

// sessionIDKeys are the query keys that carry a session identifier, in
// order of preference.
var sessionIDKeys = []string{"__ksinr", "ksinr", "SILFDNR", "__kvid", "SID"}

// sessionIDFromURL returns the decoded session identifier of a detail link.
func sessionIDFromURL(raw string) string {
	_, q, ok := strings.Cut(raw, "?")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(q, '#'); i >= 0 {
		q = q[:i]
	}
	// ParseQuery keeps every well-formed pair even when it reports an error.
	values, _ := url.ParseQuery(q)
	for _, key := range sessionIDKeys {
		for _, v := range values[key] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
