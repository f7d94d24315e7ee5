package intent

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		primary    string
		confidence float64
		all        []string
	}{
		{"empty", "", General, 0.5, []string{General}},
		{"no signal", "hello there", General, 0.5, []string{General}},
		{"billing", "I was charged twice for my subscription, please refund", Billing, 0.67, []string{Billing}},
		{"saturates", "Invoice payment fee refund credit", Billing, 1, []string{Billing}},
		{"case insensitive", "My APP keeps CRASHING with an ERROR", Technical, 0.33, []string{Technical}},
		{"multi-word pattern", "it is not working", Technical, 0.33, []string{Technical}},
		{"mixed", "I can't login after the update and I'm frustrated", Account, 0.67, []string{Technical, Account, Complaints}},
		{"tie goes to canonical order", "refund my password", Billing, 0.33, []string{Billing, Account}},
		{"strict maximum", "reset my password after the crash", Account, 0.67, []string{Technical, Account}},
		{"complaints", "terrible, awful, worst service, I am angry", Complaints, 1, []string{Complaints}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			if got.PrimaryIntent != tt.primary {
				t.Errorf("primary: got %q, want %q", got.PrimaryIntent, tt.primary)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("confidence: got %v, want %v", got.Confidence, tt.confidence)
			}
			if !reflect.DeepEqual(got.AllIntents, tt.all) {
				t.Errorf("all intents: got %v, want %v", got.AllIntents, tt.all)
			}
		})
	}
}

func TestClassify_ConfidenceInRange(t *testing.T) {
	queries := []string{
		"", "bill bill bill bill bill bill", "error", "password reset change access",
		"The Pro plan is slow and broken and the invoice is wrong",
	}
	for _, q := range queries {
		c := Classify(q).Confidence
		if c < 0 || c > 1 {
			t.Errorf("Classify(%q) confidence %v out of range", q, c)
		}
	}
}
