package types

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSpan = errors.New("invalid time span")

// WordSpan is one transcribed word with its timing in seconds.
type WordSpan struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewWordSpan validates 0 <= start <= end.
func NewWordSpan(text string, start, end float64) (WordSpan, error) {
	if err := checkSpan(start, end); err != nil {
		return WordSpan{}, err
	}
	return WordSpan{Text: text, Start: start, End: end}, nil
}

// Segment is a subtitle-sized chunk of transcript.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func NewSegment(text string, start, end float64) (Segment, error) {
	if err := checkSpan(start, end); err != nil {
		return Segment{}, err
	}
	return Segment{Text: text, Start: start, End: end}, nil
}

func checkSpan(start, end float64) error {
	if math.IsNaN(start) || math.IsNaN(end) {
		return fmt.Errorf("%w: NaN bound", ErrInvalidSpan)
	}
	if start < 0 {
		return fmt.Errorf("%w: negative start %.3f", ErrInvalidSpan, start)
	}
	if start > end {
		return fmt.Errorf("%w: start %.3f after end %.3f", ErrInvalidSpan, start, end)
	}
	return nil
}

// Transcript is what a transcription provider hands back. Providers that only
// return segment-level timing leave Words empty and fill Segments.
type Transcript struct {
	Text     string     `json:"text"`
	Language string     `json:"language"`
	Words    []WordSpan `json:"words,omitempty"`
	Segments []Segment  `json:"segments,omitempty"`
}

// DubJob describes one dubbing request.
type DubJob struct {
	ID             string `json:"id"`
	AudioPath      string `json:"audio_path"`
	TargetLanguage string `json:"target_language,omitempty"`
	Speaker        string `json:"speaker,omitempty"`
}
