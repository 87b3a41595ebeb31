package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
)

// ErrInvalidFilter is wrapped by every filter validation failure.
var ErrInvalidFilter = errors.New("export: invalid filter")

// Filter selects the documents of a batch.
type Filter struct {
	SessionIDs       []string       `json:"session_ids"`
	Committees       []string       `json:"committees"`
	DateFrom         string         `json:"date_from,omitempty"` // YYYY-MM-DD, inclusive
	DateTo           string         `json:"date_to,omitempty"`   // YYYY-MM-DD, inclusive
	DocumentTypes    []doctype.Type `json:"document_types"`
	RequireLocalPath bool           `json:"require_local_path"`
	IncludeText      bool           `json:"include_text_extraction"`
	MaxTextChars     int            `json:"max_text_chars,omitempty"` // inline text cap; 0 omits the text
}

// Normalize validates f and returns it with sorted, deduplicated sets and
// lower-case document types.
func (f Filter) Normalize() (Filter, error) {
	for _, d := range []struct{ name, value string }{{"date_from", f.DateFrom}, {"date_to", f.DateTo}} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d.value); err != nil {
			return f, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalidFilter, d.name, d.value)
		}
	}
	if f.DateFrom != "" && f.DateTo != "" && f.DateFrom > f.DateTo {
		return f, fmt.Errorf("%w: date_from %s after date_to %s", ErrInvalidFilter, f.DateFrom, f.DateTo)
	}
	if f.MaxTextChars < 0 {
		return f, fmt.Errorf("%w: max_text_chars must not be negative", ErrInvalidFilter)
	}

	var types []string
	for _, t := range f.DocumentTypes {
		s := strings.ToLower(strings.TrimSpace(string(t)))
		if s == "" {
			continue
		}
		if !doctype.Valid(s) {
			return f, fmt.Errorf("%w: unsupported document type %q (allowed: %s)", ErrInvalidFilter, s, allowedTypes())
		}
		types = append(types, s)
	}
	f.DocumentTypes = []doctype.Type{}
	for _, s := range sortedSet(types) {
		f.DocumentTypes = append(f.DocumentTypes, doctype.Type(s))
	}
	f.SessionIDs = sortedSet(f.SessionIDs)
	f.Committees = sortedSet(f.Committees)
	return f, nil
}

// Query converts a normalized filter into an index query.
func (f Filter) Query() index.Filter {
	return index.Filter{
		SessionIDs:       f.SessionIDs,
		Committees:       f.Committees,
		DateFrom:         f.DateFrom,
		DateTo:           f.DateTo,
		DocumentTypes:    f.DocumentTypes,
		RequireLocalPath: f.RequireLocalPath,
	}
}

func allowedTypes() string {
	names := make([]string, len(doctype.All))
	for i, t := range doctype.All {
		names[i] = string(t)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// sortedSet trims, drops empties and duplicates, and sorts. It never
// returns nil so the filter echo renders [] rather than null.
func sortedSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := []string{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
