package export

import (
	"encoding/json"
	"time"
)

// JSONExporter renders ReportData as structured JSON.
type JSONExporter struct{}

type jsonOutput struct {
	GeneratedAt     string        `json:"generated_at"`
	TotalQueries    int           `json:"total_queries"`
	AvgResponseTime float64       `json:"avg_response_time"`
	AvgSatisfaction float64       `json:"avg_satisfaction"`
	Intents         []intentShare `json:"intents"`
	Sessions        jsonSessions  `json:"sessions"`
	IndexRecords    int           `json:"index_records"`
}

type jsonSessions struct {
	Count int `json:"count"`
	Turns int `json:"turns"`
}

func (e *JSONExporter) Export(data ReportData) (string, error) {
	out := jsonOutput{
		GeneratedAt:     data.GeneratedAt.UTC().Format(time.RFC3339),
		TotalQueries:    data.Summary.TotalQueries,
		AvgResponseTime: data.Summary.AvgResponseTime,
		AvgSatisfaction: data.Summary.AvgSatisfaction,
		Intents:         intentShares(data.Summary.IntentDistribution),
		Sessions:        jsonSessions{Count: data.Sessions.Sessions, Turns: data.Sessions.Turns},
		IndexRecords:    data.IndexRecords,
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
