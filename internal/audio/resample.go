package audio

import (
	"fmt"

	"github.com/gopxl/beep/v2"
)

const resampleQuality = 4

// Resample converts t to rate. Stereo is kept; more than two channels are
// downmixed first because beep streams carry at most two.
func Resample(t Track, rate int) (Track, error) {
	if rate <= 0 {
		return Track{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, rate)
	}
	if t.SampleRate <= 0 {
		return Track{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, t.SampleRate)
	}
	if t.SampleRate == rate || t.NumChannels() == 0 {
		out := t.Clone()
		out.SampleRate = rate
		return out, nil
	}
	if t.NumChannels() > 2 {
		t = t.Mono()
	}
	channels := t.NumChannels()
	expected := int(int64(t.Len()) * int64(rate) / int64(t.SampleRate))

	r := beep.Resample(resampleQuality, beep.SampleRate(t.SampleRate), beep.SampleRate(rate), newStreamer(t))
	out, err := drain(r, rate, channels, expected)
	if err != nil {
		return Track{}, fmt.Errorf("resample %d->%d: %w", t.SampleRate, rate, err)
	}
	return Fit(out, expected), nil
}

// Fit pads with trailing silence or truncates so the track has exactly frames
// frames. It lives here so both the mixer and the isolator share one rule.
func Fit(t Track, frames int) Track {
	if frames < 0 {
		frames = 0
	}
	chs := make([][]float64, len(t.Channels))
	for i, ch := range t.Channels {
		out := make([]float64, frames)
		copy(out, ch)
		chs[i] = out
	}
	return Track{Channels: chs, SampleRate: t.SampleRate}
}
