package history

import (
	"context"

	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
)

// ScenarioRate is the success rate for one scenario.
type ScenarioRate struct {
	ScenarioID   string `json:"scenario_id"`
	ScenarioName string `json:"scenario_name"`
	Total        int    `json:"total"`
	Successes    int    `json:"successes"`
	Rate         int    `json:"rate"`
}

// Stats summarizes the recent training window.
type Stats struct {
	Total         int            `json:"total"`
	SuccessRate   int            `json:"success_rate"`
	ByScenario    []ScenarioRate `json:"by_scenario"`
	LearnedTypes  int            `json:"learned_types"`
	SecurityScore int            `json:"security_score"`
}

// Stats computes statistics over the latest window results.
func (s *Store) Stats(ctx context.Context, window int) (Stats, error) {
	if window <= 0 {
		window = outcome.DefaultWindow
	}
	results, err := s.ReadRecentResults(ctx, window)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(results), nil
}

// SecurityScore is the mean score of the latest window results.
func (s *Store) SecurityScore(ctx context.Context, window int) (int, error) {
	if window <= 0 {
		window = outcome.DefaultWindow
	}
	results, err := s.ReadRecentResults(ctx, window)
	if err != nil {
		return 0, err
	}
	return outcome.SecurityScore(results, window), nil
}

// Summarize computes Stats over results, newest first. Scenarios are listed
// in the order they were first seen.
func Summarize(results []outcome.Result) Stats {
	st := Stats{Total: len(results), SecurityScore: outcome.SecurityScore(results, len(results))}
	successes := 0
	index := map[string]int{}
	for _, r := range results {
		i, ok := index[r.ScenarioID]
		if !ok {
			i = len(st.ByScenario)
			index[r.ScenarioID] = i
			st.ByScenario = append(st.ByScenario, ScenarioRate{ScenarioID: r.ScenarioID, ScenarioName: r.ScenarioName})
		}
		st.ByScenario[i].Total++
		if r.Success {
			successes++
			st.ByScenario[i].Successes++
		}
	}
	st.SuccessRate = percent(successes, st.Total)
	for i := range st.ByScenario {
		st.ByScenario[i].Rate = percent(st.ByScenario[i].Successes, st.ByScenario[i].Total)
	}
	st.LearnedTypes = len(st.ByScenario)
	return st
}

// percent rounds part/total to the nearest whole percent.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
