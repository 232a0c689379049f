package aggregator

import (
	"voice-dub-go/internal/processor"
	"voice-dub-go/internal/types"
)

// Summary rolls up a batch of dubbing jobs.
type Summary struct {
	Total          int                       `json:"total"`
	Succeeded      int                       `json:"succeeded"`
	Fatal          int                       `json:"fatal"`
	TTSAvailable   int                       `json:"tts_available"`
	Degraded       int                       `json:"degraded"`
	StageOutcomes  map[string]map[string]int `json:"stage_outcomes"`
	TotalSegments  int                       `json:"total_segments"`
	OmittedSegment int                       `json:"omitted_segments"`
	AvgDurationMs  float64                   `json:"avg_duration_ms"`
}

// TTSRate is the share of jobs that produced synthesized speech.
func (s Summary) TTSRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.TTSAvailable) / float64(s.Total)
}

// Count returns how many jobs ended stage with outcome.
func (s Summary) Count(stage string, outcome types.Outcome) int {
	return s.StageOutcomes[stage][string(outcome)]
}

func Aggregate(results []processor.JobResult) Summary {
	sum := Summary{StageOutcomes: map[string]map[string]int{}}
	var totalMs int64
	for _, r := range results {
		sum.Total++
		totalMs += r.DurationMs
		if r.Error != "" {
			sum.Fatal++
		} else {
			sum.Succeeded++
		}
		if r.Result.TTSAvailable {
			sum.TTSAvailable++
		}
		if r.Result.Degraded() {
			sum.Degraded++
		}
		sum.TotalSegments += len(r.Result.Segments)
		if r.Error == "" {
			sum.OmittedSegment += len(r.Result.Segments) - len(r.Result.TranslatedSegments)
		}
		for _, st := range r.Result.Stages {
			if sum.StageOutcomes[st.Stage] == nil {
				sum.StageOutcomes[st.Stage] = map[string]int{}
			}
			sum.StageOutcomes[st.Stage][string(st.Outcome)]++
		}
	}
	if sum.Total > 0 {
		sum.AvgDurationMs = float64(totalMs) / float64(sum.Total)
	}
	return sum
}
