// Package audio holds the in-memory track representation shared by the
// isolator, the mixer and the pipeline, plus WAV/MP3 codec and resampling.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrChannelMismatch   = errors.New("channels differ in length")
	ErrNoChannels        = errors.New("track has no channels")
)

// Track is a de-interleaved float waveform in [-1, 1]. Tracks are treated as
// values: every method returns a new Track and never writes into the receiver.
type Track struct {
	Channels   [][]float64
	SampleRate int
}

// NewTrack validates the rate and channel shape. The channel slices are used
// as given; callers hand over ownership.
func NewTrack(sampleRate int, channels ...[]float64) (Track, error) {
	if sampleRate <= 0 {
		return Track{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(channels) == 0 {
		return Track{}, ErrNoChannels
	}
	n := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != n {
			return Track{}, fmt.Errorf("%w: channel %d has %d frames, want %d", ErrChannelMismatch, i+1, len(ch), n)
		}
	}
	return Track{Channels: channels, SampleRate: sampleRate}, nil
}

// Silence returns a zeroed track.
func Silence(sampleRate, channels, frames int) Track {
	if channels < 1 {
		channels = 1
	}
	if frames < 0 {
		frames = 0
	}
	chs := make([][]float64, channels)
	for i := range chs {
		chs[i] = make([]float64, frames)
	}
	return Track{Channels: chs, SampleRate: sampleRate}
}

// Len is the number of frames per channel.
func (t Track) Len() int {
	if len(t.Channels) == 0 {
		return 0
	}
	return len(t.Channels[0])
}

func (t Track) NumChannels() int { return len(t.Channels) }

func (t Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(t.Len()) * time.Second / time.Duration(t.SampleRate)
}

func (t Track) DurationMs() int64 { return t.Duration().Milliseconds() }

func (t Track) Clone() Track {
	chs := make([][]float64, len(t.Channels))
	for i, ch := range t.Channels {
		chs[i] = append([]float64(nil), ch...)
	}
	return Track{Channels: chs, SampleRate: t.SampleRate}
}

// Peak returns the largest absolute sample across channels.
func (t Track) Peak() float64 {
	var peak float64
	for _, ch := range t.Channels {
		for _, v := range ch {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// Scaled multiplies every sample by gain.
func (t Track) Scaled(gain float64) Track {
	out := t.Clone()
	for _, ch := range out.Channels {
		for i := range ch {
			ch[i] *= gain
		}
	}
	return out
}

// Normalized scales the track so its peak equals ceiling. A silent track is
// returned unchanged.
func (t Track) Normalized(ceiling float64) Track {
	peak := t.Peak()
	if peak == 0 {
		return t.Clone()
	}
	return t.Scaled(ceiling / peak)
}

// Clipped hard-limits samples to [-1, 1].
func (t Track) Clipped() Track {
	out := t.Clone()
	for _, ch := range out.Channels {
		for i, v := range ch {
			switch {
			case v > 1:
				ch[i] = 1
			case v < -1:
				ch[i] = -1
			}
		}
	}
	return out
}

// Mono averages all channels into one.
func (t Track) Mono() Track {
	if len(t.Channels) <= 1 {
		return t.Clone()
	}
	mono := make([]float64, t.Len())
	for _, ch := range t.Channels {
		for i, v := range ch {
			mono[i] += v
		}
	}
	inv := 1 / float64(len(t.Channels))
	for i := range mono {
		mono[i] *= inv
	}
	return Track{Channels: [][]float64{mono}, SampleRate: t.SampleRate}
}

// WithChannels converts to n channels: mono is duplicated, anything else is
// downmixed to mono first.
func (t Track) WithChannels(n int) Track {
	if n < 1 || n == len(t.Channels) {
		return t.Clone()
	}
	mono := t.Mono()
	chs := make([][]float64, n)
	for i := range chs {
		chs[i] = append([]float64(nil), mono.Channels[0]...)
	}
	return Track{Channels: chs, SampleRate: t.SampleRate}
}

// Frames returns a copy of frames [from, to), clamped to the track bounds.
func (t Track) Frames(from, to int) Track {
	n := t.Len()
	from = max(0, min(from, n))
	to = max(from, min(to, n))
	chs := make([][]float64, len(t.Channels))
	for i, ch := range t.Channels {
		chs[i] = append([]float64(nil), ch[from:to]...)
	}
	return Track{Channels: chs, SampleRate: t.SampleRate}
}
