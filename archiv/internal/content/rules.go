package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

const maxFieldChars = 1200

// fieldRule extracts the text after the first label up to the earliest stop label.
type fieldRule struct {
	key   string
	label *regexp.Regexp
	stop  *regexp.Regexp
}

func newRule(key string, colon bool, labels, stops []string) fieldRule {
	sep := `\s*[:\-]?\s*`
	if colon {
		sep = `\s*:\s*`
	}
	return fieldRule{
		key:   key,
		label: regexp.MustCompile(`(?i)\b(?:` + alternation(labels) + `)\b` + sep),
		stop:  regexp.MustCompile(`(?i)\b(?:` + alternation(stops) + `)\b`),
	}
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// apply returns the field value and the offset of the label in text.
func (r fieldRule) apply(text string) (string, int, bool) {
	loc := r.label.FindStringIndex(text)
	if loc == nil {
		return "", 0, false
	}
	rest := text[loc[1]:]
	if s := r.stop.FindStringIndex(rest); s != nil {
		rest = rest[:s[0]]
	}
	value := strings.TrimRight(collapseSpace(rest), " #*")
	if utf8.RuneCountInString(value) > maxFieldChars {
		value = strings.TrimSpace(string([]rune(value)[:maxFieldChars]))
	}
	if value == "" {
		return "", 0, false
	}
	return value, loc[0], true
}

func collapseSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

type ruleSet struct {
	fields []fieldRule
	strong map[string]bool
}

var (
	rationaleLabels = []string{"Begründung", "Begruendung", "Sachverhalt", "Erläuterung", "Erlaeuterung"}
	financeLabels   = []string{"Finanzielle Auswirkungen", "Finanzierung", "Haushaltsmittel", "Kosten"}
	dutyLabels      = []string{"Zuständigkeit", "Zustaendigkeit", "Federführung", "Federfuehrung", "Beratungsfolge", "Zuständige Stelle"}
	attachLabels    = []string{"Anlagen", "Anlage"}
)

func join(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func vorlageFields() []fieldRule {
	return []fieldRule{
		newRule("beschlusstext", false,
			[]string{"Beschlussvorschlag", "Beschluss", "Empfehlung", "Antrag"},
			join(rationaleLabels, financeLabels[:1], dutyLabels[:4], attachLabels)),
		newRule("begruendung", false,
			rationaleLabels,
			join(financeLabels[:1], dutyLabels[:4], []string{"Beschlussvorschlag", "Beschluss"}, attachLabels)),
		newRule("finanzbezug", false,
			financeLabels,
			join(dutyLabels[:4], attachLabels, []string{"Beschluss"}, rationaleLabels[:2])),
		newRule("zustaendigkeit", false,
			dutyLabels,
			join(attachLabels, financeLabels[:1], rationaleLabels[:2], []string{"Beschluss"})),
	}
}

// ruleSets holds the field rules of the prioritized document types.
var ruleSets = map[doctype.Type]ruleSet{
	doctype.Vorlage: {
		fields: vorlageFields(),
		strong: map[string]bool{"beschlusstext": true, "begruendung": true, "finanzbezug": true, "zustaendigkeit": true},
	},
	doctype.Beschlussvorlage: {
		fields: append(vorlageFields(),
			newRule("entscheidung", true,
				[]string{"Abstimmungsergebnis", "Ergebnis", "Entscheidung", "Beschluss"},
				join(rationaleLabels, financeLabels[:1], dutyLabels[:4], attachLabels, []string{"Hinweis"}))),
		strong: map[string]bool{"beschlusstext": true, "begruendung": true, "finanzbezug": true, "zustaendigkeit": true},
	},
	doctype.Protokoll: {
		fields: []fieldRule{
			newRule("entscheidung", false,
				[]string{"Beschluss", "Abstimmung", "Entscheidung", "Ergebnis"},
				join(rationaleLabels[:3], []string{"Notiz", "Hinweis"}, attachLabels)),
			newRule("beschlusstext", false,
				[]string{"Beschlusstext", "Beschluss", "Beschlussvorschlag"},
				join([]string{"Abstimmung", "Ergebnis", "Notiz", "Hinweis"}, attachLabels)),
			newRule("begruendung", false,
				join(rationaleLabels[:3], []string{"Diskussion", "Beratung"}),
				join([]string{"Beschluss", "Abstimmung", "Ergebnis"}, attachLabels)),
		},
		strong: map[string]bool{"beschlusstext": true, "entscheidung": true, "begruendung": true},
	},
}

type sectionHit struct {
	key    string
	offset int
}

// applyRules fills fields from text for prioritized types. ok is false for
// other types.
func applyRules(t doctype.Type, text string) (StructuredFields, []sectionHit, int, bool) {
	rs, ok := ruleSets[t]
	if !ok {
		return StructuredFields{}, nil, 0, false
	}
	var f StructuredFields
	var hits []sectionHit
	strong := 0
	for _, rule := range rs.fields {
		value, off, found := rule.apply(text)
		if !found {
			continue
		}
		*f.ref(rule.key) = value
		hits = append(hits, sectionHit{key: rule.key, offset: off})
		if rs.strong[rule.key] {
			strong++
		}
	}
	return f, hits, strong, true
}

// parserQuality grades field coverage.
func parserQuality(strong, textLen int) Level {
	switch {
	case strong >= 3:
		return LevelHigh
	case strong == 2:
		return LevelMedium
	case strong == 1:
		return LevelLow
	case textLen >= 120:
		return LevelLow
	}
	return LevelFailed
}

// firstLine returns the first non-empty line, capped at 200 runes.
func firstLine(text string) string {
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimLeft(strings.TrimSpace(l), "#* ")
		if l == "" {
			continue
		}
		if utf8.RuneCountInString(l) > 200 {
			l = string([]rune(l)[:200])
		}
		return l
	}
	return ""
}
