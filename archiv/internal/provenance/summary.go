package provenance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
)

// AgendaSummaryEntry is one agenda item as stored in agenda_summary.json.
type AgendaSummaryEntry struct {
	Number           string  `json:"number"`
	Title            string  `json:"title"`
	Reporter         string  `json:"reporter,omitempty"`
	RawStatus        string  `json:"raw_status,omitempty"`
	Decision         *string `json:"decision"`
	DocumentsPresent bool    `json:"documents_present"`
	NeedsReview      bool    `json:"needs_review,omitempty"`
}

// UnmarshalJSON accepts the older "status" key for the raw status.
func (e *AgendaSummaryEntry) UnmarshalJSON(data []byte) error {
	type plain AgendaSummaryEntry
	var aux struct {
		plain
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = AgendaSummaryEntry(aux.plain)
	if e.RawStatus == "" {
		e.RawStatus = aux.Status
	}
	return nil
}

// BuildAgendaSummary derives the summary of detail against the current
// manifest entries.
func BuildAgendaSummary(detail *parse.SessionDetail, m *Manifest) []AgendaSummaryEntry {
	present := make(map[string]bool)
	for _, e := range m.Current() {
		if e.TopAssociation != "" {
			present[e.TopAssociation] = true
		}
	}
	out := make([]AgendaSummaryEntry, 0, len(detail.Agenda))
	for _, item := range detail.Agenda {
		out = append(out, AgendaSummaryEntry{
			Number:           item.Number,
			Title:            item.Title,
			Reporter:         item.Reporter,
			RawStatus:        item.RawStatus,
			Decision:         item.Decision.Ptr(),
			DocumentsPresent: present[item.Number],
			NeedsReview:      item.NeedsReview,
		})
	}
	return out
}

// WriteAgendaSummary rewrites dir/agenda_summary.json wholesale.
func WriteAgendaSummary(dir string, detail *parse.SessionDetail, m *Manifest) error {
	data, err := marshalIndent(BuildAgendaSummary(detail, m))
	if err != nil {
		return fmt.Errorf("provenance: encode agenda summary: %w", err)
	}
	return WriteRaw(filepath.Join(dir, AgendaSummaryFile), data)
}

// LoadAgendaSummary reads dir/agenda_summary.json; a missing file yields nil.
// The older object form with an "agenda_items" list is accepted too.
func LoadAgendaSummary(dir string) ([]AgendaSummaryEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, AgendaSummaryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provenance: read agenda summary: %w", err)
	}
	var out []AgendaSummaryEntry
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			AgendaItems []AgendaSummaryEntry `json:"agenda_items"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		out = wrapped.AgendaItems
	} else {
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("provenance: decode agenda summary %s: %w", dir, err)
	}
	return out, nil
}
