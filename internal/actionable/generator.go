package actionable

import (
	"fmt"

	"voice-dub-go/internal/aggregator"
	"voice-dub-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Generate picks the most pressing follow-up for a batch, checking fatal runs
// first, then missing speech, then isolation fallbacks.
func Generate(s aggregator.Summary) ActionCard {
	if s.Total == 0 {
		return ActionCard{
			Insight: "No jobs processed",
			Action:  "Check the manifest for rows with audio paths",
			Impact:  "Nothing to dub",
		}
	}
	if s.Fatal > 0 {
		return ActionCard{
			Insight: fmt.Sprintf("%d of %d jobs failed before translation", s.Fatal, s.Total),
			Action:  "Verify transcription/translation credentials and that the inputs contain speech",
			Impact:  "Failed jobs produce no subtitles or audio",
		}
	}
	if rate := s.TTSRate(); rate < 0.65 {
		return ActionCard{
			Insight: fmt.Sprintf("Speech available for only %.0f%% of jobs", rate*100),
			Action:  "Check the synthesis API key and quota; affected jobs delivered text only",
			Impact:  "Re-run affected jobs to get dubbed audio",
		}
	}
	if n := s.Count("isolate", types.OutcomeDegraded); n > 0 {
		return ActionCard{
			Insight: fmt.Sprintf("Background isolation fell back for %d jobs", n),
			Action:  "Those dubs were mixed over the attenuated original; review them for voice bleed",
			Impact:  "Quality only, every dub was still produced",
		}
	}
	return ActionCard{
		Insight: "All jobs dubbed without fallbacks",
		Action:  "None",
		Impact:  "Low immediate intervention",
	}
}
