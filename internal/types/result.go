package types

// Outcome of a single pipeline stage.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFatal    Outcome = "fatal"
)

// StageReport records how one stage ended.
type StageReport struct {
	Stage      string  `json:"stage"`
	Outcome    Outcome `json:"outcome"`
	Error      string  `json:"error,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}

// PipelineResult is built incrementally by the orchestrator. Optional paths are
// only set when the stage producing them succeeded.
type PipelineResult struct {
	JobID              string        `json:"job_id"`
	OriginalText       string        `json:"original_text"`
	SourceLanguage     string        `json:"source_language,omitempty"`
	TranslatedText     string        `json:"translated_text"`
	Segments           []Segment     `json:"segments"`
	TranslatedSegments []Segment     `json:"translated_segments"`
	MixedAudioPath     string        `json:"mixed_audio_path,omitempty"`
	BackgroundPath     string        `json:"background_path,omitempty"`
	VoicePath          string        `json:"voice_path,omitempty"`
	OriginalPath       string        `json:"original_path,omitempty"`
	TTSAvailable       bool          `json:"tts_available"`
	Stages             []StageReport `json:"stages"`
}

// Stage returns the report for the named stage, if it ran.
func (r PipelineResult) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Degraded reports whether any stage fell back.
func (r PipelineResult) Degraded() bool {
	for _, s := range r.Stages {
		if s.Outcome == OutcomeDegraded {
			return true
		}
	}
	return false
}
