package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
)

func sampleReportData() ReportData {
	return ReportData{
		Summary: analytics.Summary{
			TotalQueries:    4,
			AvgResponseTime: 1.25,
			AvgSatisfaction: 4.5,
			IntentDistribution: map[string]int{
				"billing": 2, "technical": 1, "account": 0, "complaints": 0, "general": 1,
			},
		},
		Sessions:     conversation.Stats{Sessions: 2, Turns: 8},
		IndexRecords: 17,
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGet(t *testing.T) {
	for _, name := range []string{"markdown", "json"} {
		exp, ok := Get(name)
		if !ok || exp == nil {
			t.Errorf("Get(%q) = %v, %v", name, exp, ok)
		}
	}
	if _, ok := Get("claude"); ok {
		t.Error("expected Get('claude') to return false")
	}
}

func TestValidFormats(t *testing.T) {
	got := strings.Join(ValidFormats(), ",")
	if got != "json,markdown" {
		t.Errorf("ValidFormats() = %s", got)
	}
}

func TestIntentShares(t *testing.T) {
	shares := intentShares(map[string]int{"billing": 1, "general": 2, "legacy": 0})

	var names []string
	for _, s := range shares {
		names = append(names, s.Intent)
	}
	if got := strings.Join(names, ","); got != "billing,technical,account,complaints,general,legacy" {
		t.Errorf("order: %s", got)
	}
	if shares[0].Percent != 33.33 || shares[4].Percent != 66.67 {
		t.Errorf("percentages: billing=%v general=%v", shares[0].Percent, shares[4].Percent)
	}
}

func TestIntentShares_NoQueries(t *testing.T) {
	for _, s := range intentShares(nil) {
		if s.Count != 0 || s.Percent != 0 {
			t.Errorf("%s: %+v", s.Intent, s)
		}
	}
}

func TestMarkdownExporter(t *testing.T) {
	exp, _ := Get("markdown")
	result, err := exp.Export(sampleReportData())
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}

	checks := []string{
		"# Support Analytics",
		"**Total queries:** 4",
		"1.25s",
		"4.50 / 5",
		"**Sessions:** 2 (8 turns)",
		"**Indexed chunks:** 17",
		"| billing | 2 | 50.0% |",
		"| general | 1 | 25.0% |",
		"| complaints | 0 | 0.0% |",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("markdown export missing %q\n%s", check, result)
		}
	}
}

func TestMarkdownExporter_NoRatings(t *testing.T) {
	data := sampleReportData()
	data.Summary.AvgSatisfaction = 0
	exp, _ := Get("markdown")
	result, err := exp.Export(data)
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if !strings.Contains(result, "no ratings yet") {
		t.Errorf("expected no-ratings note:\n%s", result)
	}
}

func TestJSONExporter(t *testing.T) {
	exp, _ := Get("json")
	result, err := exp.Export(sampleReportData())
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}

	var parsed struct {
		GeneratedAt     string        `json:"generated_at"`
		TotalQueries    int           `json:"total_queries"`
		AvgSatisfaction float64       `json:"avg_satisfaction"`
		Intents         []intentShare `json:"intents"`
		Sessions        jsonSessions  `json:"sessions"`
		IndexRecords    int           `json:"index_records"`
	}
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("JSON export is invalid JSON: %v", err)
	}

	if parsed.GeneratedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("generated_at: %s", parsed.GeneratedAt)
	}
	if parsed.TotalQueries != 4 || parsed.AvgSatisfaction != 4.5 {
		t.Errorf("summary: %+v", parsed)
	}
	if len(parsed.Intents) != 5 || parsed.Intents[0].Intent != "billing" || parsed.Intents[0].Percent != 50 {
		t.Errorf("intents: %+v", parsed.Intents)
	}
	if parsed.Sessions.Count != 2 || parsed.IndexRecords != 17 {
		t.Errorf("sessions=%+v records=%d", parsed.Sessions, parsed.IndexRecords)
	}
}
