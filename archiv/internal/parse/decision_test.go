package parse

import "testing"

func TestInferDecision_KeywordTable(t *testing.T) {
	// WHAT: Every phrase of the keyword table maps to its decision.
	// WHY: The table is the only source of decisions; nothing is guessed.
	for phrase, want := range DecisionKeywords {
		got, conflict := InferDecision(phrase)
		if got != want || conflict {
			t.Errorf("InferDecision(%q) = %q (conflict=%v), want %q", phrase, got, conflict, want)
		}
	}
}

func TestInferDecision_Unmapped(t *testing.T) {
	// WHAT: Unmapped or absent status yields no decision.
	// WHY: Never default to accepted/rejected.
	for _, raw := range []string{"", "   ", "vertagt", "zur Kenntnis genommen", "abgesetzt", "verwiesen in den Ausschuss"} {
		got, conflict := InferDecision(raw)
		if got != DecisionNone || conflict {
			t.Errorf("InferDecision(%q) = %q (conflict=%v), want none", raw, got, conflict)
		}
	}
}

func TestInferDecision_Phrases(t *testing.T) {
	tests := []struct {
		raw  string
		want Decision
	}{
		{"Einstimmig beschlossen", DecisionAccepted},
		{"BESCHLOSSEN", DecisionAccepted},
		{"mehrheitlich beschlossen (12 Ja, 3 Nein)", DecisionAccepted},
		{"Antrag nicht beschlossen", DecisionRejected},
		{"Der Antrag wurde abgelehnt", DecisionRejected},
		{"nicht  angenommen", DecisionRejected},
		{"einstimmig abgelehnt", DecisionRejected},
		{"mehrheitlich abgelehnt", DecisionRejected},
		{"Einstimmig nicht beschlossen", DecisionRejected},
		{"Mehrheitlich zurückgewiesen (4 Ja, 9 Nein)", DecisionRejected},
		{"einstimmig", DecisionAccepted},
	}
	for _, tt := range tests {
		got, conflict := InferDecision(tt.raw)
		if got != tt.want || conflict {
			t.Errorf("InferDecision(%q) = %q (conflict=%v), want %q", tt.raw, got, conflict, tt.want)
		}
	}
}

func TestInferDecision_QualifierWithRejectionIsNoConflict(t *testing.T) {
	// WHAT: A vote-count qualifier next to a rejection does not raise the review flag.
	// WHY: "einstimmig abgelehnt" is one of the most common portal statuses.
	for _, raw := range []string{"einstimmig abgelehnt", "mehrheitlich abgelehnt"} {
		if _, conflict := InferDecision(raw); conflict {
			t.Errorf("InferDecision(%q) flagged as conflict", raw)
		}
	}
}

func TestInferDecision_Conflict(t *testing.T) {
	// WHAT: Mixed accept/reject language yields null with the conflict flag.
	// WHY: A split status cannot be resolved by rule; it goes to manual review.
	got, conflict := InferDecision("Antrag A beschlossen, Antrag B abgelehnt")
	if got != DecisionNone || !conflict {
		t.Errorf("got %q conflict=%v, want none with conflict", got, conflict)
	}
}

func TestDecision_Ptr(t *testing.T) {
	if DecisionNone.Ptr() != nil {
		t.Error("none should render as null")
	}
	if p := DecisionAccepted.Ptr(); p == nil || *p != "accepted" {
		t.Errorf("accepted ptr: %v", p)
	}
}
