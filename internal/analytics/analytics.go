// Package analytics accumulates query counts, response times, satisfaction
// ratings and the intent distribution.
package analytics

import (
	"maps"
	"math"
	"slices"

	"github.com/ragdesk/ragdesk/internal/intent"
)

// State is the persisted accumulator. Sample sequences grow without bound.
type State struct {
	TotalQueries       int            `json:"total_queries"`
	ResponseTimes      []float64      `json:"response_times"`
	SatisfactionScores []int          `json:"satisfaction_scores"`
	IntentDistribution map[string]int `json:"intent_distribution"`
}

// Summary is the reported view of a State.
type Summary struct {
	TotalQueries       int            `json:"total_queries"`
	AvgResponseTime    float64        `json:"avg_response_time"`
	AvgSatisfaction    float64        `json:"avg_satisfaction"`
	IntentDistribution map[string]int `json:"intent_distribution"`
}

// NewState returns an empty State with every intent counted at zero.
func NewState() State {
	dist := make(map[string]int, len(intent.All))
	for _, name := range intent.All {
		dist[name] = 0
	}
	return State{
		ResponseTimes:      []float64{},
		SatisfactionScores: []int{},
		IntentDistribution: dist,
	}
}

func (s State) clone() State {
	out := State{
		TotalQueries:       s.TotalQueries,
		ResponseTimes:      slices.Clone(s.ResponseTimes),
		SatisfactionScores: slices.Clone(s.SatisfactionScores),
		IntentDistribution: maps.Clone(s.IntentDistribution),
	}
	if out.ResponseTimes == nil {
		out.ResponseTimes = []float64{}
	}
	if out.SatisfactionScores == nil {
		out.SatisfactionScores = []int{}
	}
	if out.IntentDistribution == nil {
		out.IntentDistribution = NewState().IntentDistribution
	}
	return out
}

// RecordQuery returns s with one more query of the given intent answered in
// seconds. s is not modified.
func RecordQuery(s State, intentName string, seconds float64) State {
	out := s.clone()
	out.TotalQueries++
	out.ResponseTimes = append(out.ResponseTimes, seconds)
	out.IntentDistribution[intentName]++
	return out
}

// RecordFeedback returns s with rating appended. s is not modified.
func RecordFeedback(s State, rating int) State {
	out := s.clone()
	out.SatisfactionScores = append(out.SatisfactionScores, rating)
	return out
}

// Summarize averages the recorded samples. Empty sequences average to 0.
func Summarize(s State) Summary {
	var rt float64
	for _, v := range s.ResponseTimes {
		rt += v
	}
	var sat float64
	for _, v := range s.SatisfactionScores {
		sat += float64(v)
	}

	sum := Summary{
		TotalQueries:       s.TotalQueries,
		IntentDistribution: maps.Clone(s.IntentDistribution),
	}
	if n := len(s.ResponseTimes); n > 0 {
		sum.AvgResponseTime = round2(rt / float64(n))
	}
	if n := len(s.SatisfactionScores); n > 0 {
		sum.AvgSatisfaction = round2(sat / float64(n))
	}
	if sum.IntentDistribution == nil {
		sum.IntentDistribution = NewState().IntentDistribution
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
