package intent

import "regexp"

// Entity categories.
const (
	AccountNumbers = "account_numbers"
	Dates          = "dates"
	Emails         = "emails"
	ProductNames   = "product_names"
)

var entityPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{AccountNumbers, regexp.MustCompile(`\b\d{6,12}\b`)},
	{Dates, regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)},
	{Emails, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{ProductNames, regexp.MustCompile(`(?i)\b(Premium|Basic|Pro|Enterprise|Starter)\b`)},
}

// Entities maps a category to the matches found, in order of appearance.
// Categories without matches are absent.
type Entities map[string][]string

// ExtractEntities finds account numbers, dates, emails and product names
// in query. Matches keep the casing of the input.
func ExtractEntities(query string) Entities {
	out := Entities{}
	for _, p := range entityPatterns {
		if m := p.re.FindAllString(query, -1); len(m) > 0 {
			out[p.name] = m
		}
	}
	return out
}
