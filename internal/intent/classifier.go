// Package intent classifies support queries by keyword patterns and pulls
// simple entities out of them.
package intent

import (
	"math"
	"regexp"
	"strings"
)

// Intent labels.
const (
	Billing    = "billing"
	Technical  = "technical"
	Account    = "account"
	Complaints = "complaints"
	General    = "general"
)

// Ordered is the canonical intent order. Ties between equal scores resolve
// to the earliest entry.
var Ordered = []string{Billing, Technical, Account, Complaints}

// All lists every label a Result may carry, General last.
var All = []string{Billing, Technical, Account, Complaints, General}

var patterns = map[string][]*regexp.Regexp{
	Billing: {
		regexp.MustCompile(`\b(bill|invoice|payment|charge|refund|cost|price|fee|subscription)\b`),
		regexp.MustCompile(`\b(paid|pay|owe|balance|credit)\b`),
	},
	Technical: {
		regexp.MustCompile(`\b(not working|error|bug|issue|problem|fix|broken|crash|slow)\b`),
		regexp.MustCompile(`\b(install|setup|configure|update|download)\b`),
	},
	Account: {
		regexp.MustCompile(`\b(account|profile|password|login|username|settings|email|security)\b`),
		regexp.MustCompile(`\b(reset|change|update|modify|access)\b`),
	},
	Complaints: {
		regexp.MustCompile(`\b(complaint|unhappy|dissatisfied|angry|frustrated|disappointed)\b`),
		regexp.MustCompile(`\b(terrible|awful|worst|bad experience|poor service)\b`),
	},
}

// Result is the outcome of Classify.
type Result struct {
	PrimaryIntent string   `json:"primary_intent"`
	Confidence    float64  `json:"confidence"`
	AllIntents    []string `json:"all_intents"`
}

// Classify scores query against each intent's patterns. It never fails:
// a query with no signal is General with confidence 0.5.
func Classify(query string) Result {
	lower := strings.ToLower(query)

	primary, best := "", 0
	var detected []string
	for _, name := range Ordered {
		score := 0
		for _, re := range patterns[name] {
			score += len(re.FindAllStringIndex(lower, -1))
		}
		if score == 0 {
			continue
		}
		detected = append(detected, name)
		if score > best {
			primary, best = name, score
		}
	}

	if best == 0 {
		return Result{PrimaryIntent: General, Confidence: 0.5, AllIntents: []string{General}}
	}
	return Result{
		PrimaryIntent: primary,
		Confidence:    round2(math.Min(float64(best)/3, 1)),
		AllIntents:    detected,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
