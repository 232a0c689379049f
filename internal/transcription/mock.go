package transcription

import (
	"context"
	"strings"

	"voice-dub-go/internal/types"
)

const mockText = "MOCK TRANSCRIPT: the speaker welcomes everyone to the show and introduces today's guest who talks about music and travel"

// Mock returns a fixed transcript with evenly spaced word timings.
type Mock struct {
	Text     string
	Language string
}

func (m Mock) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}
	text := m.Text
	if text == "" {
		text = mockText
	}
	lang := m.Language
	if lang == "" {
		lang = "en"
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return types.Transcript{}, ErrEmptyTranscript
	}
	out := types.Transcript{Text: strings.Join(words, " "), Language: lang}
	for i, w := range words {
		start := float64(i) * 0.4
		out.Words = append(out.Words, types.WordSpan{Text: w, Start: start, End: start + 0.35})
	}
	return out, nil
}
