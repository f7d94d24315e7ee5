package export

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownExporter renders ReportData as a human-readable report.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(data ReportData) (string, error) {
	var sb strings.Builder
	s := data.Summary

	sb.WriteString("# Support Analytics\n\n")
	fmt.Fprintf(&sb, "_Generated %s_\n\n", data.GeneratedAt.UTC().Format(time.RFC1123))

	sb.WriteString("## Overview\n\n")
	fmt.Fprintf(&sb, "- **Total queries:** %d\n", s.TotalQueries)
	fmt.Fprintf(&sb, "- **Average response time:** %.2fs\n", s.AvgResponseTime)
	if s.AvgSatisfaction > 0 {
		fmt.Fprintf(&sb, "- **Average satisfaction:** %.2f / 5\n", s.AvgSatisfaction)
	} else {
		sb.WriteString("- **Average satisfaction:** no ratings yet\n")
	}
	fmt.Fprintf(&sb, "- **Sessions:** %d (%d turns)\n", data.Sessions.Sessions, data.Sessions.Turns)
	if data.IndexRecords > 0 {
		fmt.Fprintf(&sb, "- **Indexed chunks:** %d\n", data.IndexRecords)
	}
	sb.WriteString("\n")

	sb.WriteString("## Intent Distribution\n\n")
	sb.WriteString("| Intent | Queries | Share |\n")
	sb.WriteString("|--------|--------:|------:|\n")
	for _, share := range intentShares(s.IntentDistribution) {
		fmt.Fprintf(&sb, "| %s | %d | %.1f%% |\n", share.Intent, share.Count, share.Percent)
	}

	return sb.String(), nil
}
