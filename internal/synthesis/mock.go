package synthesis

import (
	"context"
	"math"
	"unicode/utf8"

	"voice-dub-go/internal/audio"
)

// Mock renders a quiet 220 Hz tone, 60 ms per character, as WAV.
type Mock struct {
	SampleRate int
}

func (m Mock) Synthesize(ctx context.Context, text, speaker string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rate := m.SampleRate
	if rate <= 0 {
		rate = 22050
	}
	frames := utf8.RuneCountInString(text) * rate * 60 / 1000
	if frames == 0 {
		return nil, ErrEmptyAudio
	}
	ch := make([]float64, frames)
	for i := range ch {
		ch[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
	}
	tr, err := audio.NewTrack(rate, ch)
	if err != nil {
		return nil, err
	}
	return audio.EncodeBytes(tr)
}
