// CLAUDE:SUMMARY Closed set of canonical document types and the single classification rule used for new rows and backfill.
// CLAUDE:EXPORTS Type, Hints, Classify, Canonical, Valid, Prioritized, All
package doctype

import "strings"

// Type is a canonical document type.
type Type string

const (
	Vorlage          Type = "vorlage"
	Beschlussvorlage Type = "beschlussvorlage"
	Protokoll        Type = "protokoll"
	Bekanntmachung   Type = "bekanntmachung"
	Sonstiges        Type = "sonstiges"
)

// All lists the closed set in a stable order.
var All = []Type{Vorlage, Beschlussvorlage, Protokoll, Bekanntmachung, Sonstiges}

// Hints are the free-text signals a document carries.
type Hints struct {
	Title       string
	Category    string
	ContentType string
	URL         string
	Path        string
}

// categoryCodes maps the portal's short category codes.
var categoryCodes = map[string]Type{
	"pr":  Protokoll,
	"ni":  Protokoll,
	"bm":  Bekanntmachung,
	"be":  Bekanntmachung,
	"bek": Bekanntmachung,
	"bv":  Beschlussvorlage,
	"vo":  Vorlage,
	"vl":  Vorlage,
}

// keywordRules are checked in order; the first hit wins.
var keywordRules = []struct {
	typ      Type
	keywords []string
}{
	{Protokoll, []string{"niederschrift", "sitzungsprotokoll", "protokoll"}},
	{Bekanntmachung, []string{"bekanntmachung", "einladung", "tagesordnung"}},
	{Beschlussvorlage, []string{"beschlussvorlage", "beschlussvorschlag", "beschluss"}},
	{Vorlage, []string{"vorlage", "antrag", "drucksache"}},
}

// legacyLabels are labels older index builds stored.
var legacyLabels = map[string]Type{
	"niederschrift": Protokoll,
	"einladung":     Bekanntmachung,
	"beschluss":     Beschlussvorlage,
}

// Classify maps hints to a canonical type. Category codes take precedence
// over keyword matching; nothing matching yields Sonstiges.
func Classify(h Hints) Type {
	code := strings.ToLower(strings.TrimSpace(h.Category))
	if t, ok := categoryCodes[code]; ok {
		return t
	}
	if t, ok := Canonical(code); ok && code != "" {
		return t
	}

	blob := strings.ToLower(strings.Join([]string{h.Title, h.Category, h.ContentType, h.URL, h.Path}, " "))
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(blob, kw) {
				return rule.typ
			}
		}
	}
	return Sonstiges
}

// Canonical returns the canonical type for a stored label, rewriting known
// legacy labels. ok is false for labels outside both sets.
func Canonical(label string) (Type, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if Valid(l) {
		return Type(l), true
	}
	if t, ok := legacyLabels[l]; ok {
		return t, true
	}
	return "", false
}

// IsLegacy reports whether label is a known legacy label.
func IsLegacy(label string) bool {
	_, ok := legacyLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// LegacyLabels returns the legacy-to-canonical rewrite table.
func LegacyLabels() map[string]Type {
	out := make(map[string]Type, len(legacyLabels))
	for k, v := range legacyLabels {
		out[k] = v
	}
	return out
}

// Valid reports whether s is one of the canonical types.
func Valid(s string) bool {
	for _, t := range All {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Prioritized reports whether structured fields are extracted for t.
func Prioritized(t Type) bool {
	return t == Vorlage || t == Beschlussvorlage || t == Protokoll
}
