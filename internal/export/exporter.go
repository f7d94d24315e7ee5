// Package export renders support analytics into shareable report formats.
package export

import (
	"sort"
	"time"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/intent"
)

// ReportData is passed to every Exporter.
type ReportData struct {
	Summary      analytics.Summary
	Sessions     conversation.Stats
	IndexRecords int
	GeneratedAt  time.Time
}

// Exporter renders ReportData to a string in a specific format.
type Exporter interface {
	Export(data ReportData) (string, error)
}

// registry maps format names to Exporter implementations.
var registry = map[string]Exporter{
	"markdown": &MarkdownExporter{},
	"json":     &JSONExporter{},
}

// Get returns the Exporter registered under name, and whether it was found.
func Get(name string) (Exporter, bool) {
	e, ok := registry[name]
	return e, ok
}

// ValidFormats returns the supported format names, sorted.
func ValidFormats() []string {
	formats := make([]string, 0, len(registry))
	for k := range registry {
		formats = append(formats, k)
	}
	sort.Strings(formats)
	return formats
}

type intentShare struct {
	Intent  string  `json:"intent"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// intentShares lists every intent in canonical order, followed by any
// unexpected labels in name order.
func intentShares(dist map[string]int) []intentShare {
	total := 0
	for _, n := range dist {
		total += n
	}

	names := append([]string(nil), intent.All...)
	var extra []string
	for name := range dist {
		if !contains(intent.All, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	shares := make([]intentShare, len(names))
	for i, name := range names {
		shares[i] = intentShare{Intent: name, Count: dist[name]}
		if total > 0 {
			shares[i].Percent = float64(int(float64(dist[name])*10000/float64(total)+0.5)) / 100
		}
	}
	return shares
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
