package parse

import (
	"sort"
	"strings"
)

// DecisionKeywords is the fixed vocabulary mapping raw status phrases to a
// decision. Matching is case-insensitive on substrings.
var DecisionKeywords = map[string]Decision{
	"beschlossen":       DecisionAccepted,
	"angenommen":        DecisionAccepted,
	"zugestimmt":        DecisionAccepted,
	"genehmigt":         DecisionAccepted,
	"einstimmig":        DecisionAccepted,
	"mehrheitlich":      DecisionAccepted,
	"abgelehnt":         DecisionRejected,
	"nicht beschlossen": DecisionRejected,
	"nicht angenommen":  DecisionRejected,
	"nicht zugestimmt":  DecisionRejected,
	"zurückgewiesen":    DecisionRejected,
	"zurueckgewiesen":   DecisionRejected,
}

// voteQualifiers describe how a vote went, not which way. They count as
// acceptance only when no rejected phrase is present ("einstimmig abgelehnt").
var voteQualifiers = map[string]bool{
	"einstimmig":   true,
	"mehrheitlich": true,
}

// negatedFirst lists rejected phrases longest first, so "nicht beschlossen"
// is consumed before "beschlossen" can match inside it.
var negatedFirst = func() []string {
	var out []string
	for k, v := range DecisionKeywords {
		if v == DecisionRejected {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// InferDecision maps a raw status to a decision. Absent or unmapped status
// yields DecisionNone. Language for both outcomes also yields DecisionNone
// and conflict=true so the item can be flagged for manual review.
func InferDecision(raw string) (d Decision, conflict bool) {
	s := strings.ToLower(collapse(raw))
	if s == "" {
		return DecisionNone, false
	}

	rejected := false
	for _, phrase := range negatedFirst {
		if strings.Contains(s, phrase) {
			rejected = true
			s = strings.ReplaceAll(s, phrase, " ")
		}
	}
	accepted := false
	for phrase, v := range DecisionKeywords {
		if v != DecisionAccepted || (rejected && voteQualifiers[phrase]) {
			continue
		}
		if strings.Contains(s, phrase) {
			accepted = true
			break
		}
	}

	switch {
	case accepted && rejected:
		return DecisionNone, true
	case accepted:
		return DecisionAccepted, false
	case rejected:
		return DecisionRejected, false
	}
	return DecisionNone, false
}
