// Package isolator suppresses vocal-band energy in a waveform while keeping
// the higher-frequency content that usually carries music and effects.
//
// It is a heuristic spectral gate, not source separation: magnitudes below
// the vocal cutoff are attenuated along a linear ramp, magnitudes above it by
// a flat factor, phase is left untouched and the result is peak-normalised.
package isolator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/config"
)

var ErrEmptyInput = errors.New("isolator: empty input track")

// Params mirrors config.Isolation; kept separate so callers outside the
// config package can build one directly.
type Params struct {
	AnalysisRate  int
	FFTSize       int
	HopSize       int
	VocalCutoffHz float64
	LowGainStart  float64
	LowGainEnd    float64
	HighGain      float64
	PeakCeiling   float64
}

func DefaultParams() Params {
	return FromConfig(config.Default().Isolation)
}

func FromConfig(c config.Isolation) Params {
	return Params{
		AnalysisRate:  c.AnalysisRate,
		FFTSize:       c.FFTSize,
		HopSize:       c.HopSize,
		VocalCutoffHz: c.VocalCutoffHz,
		LowGainStart:  c.LowGainStart,
		LowGainEnd:    c.LowGainEnd,
		HighGain:      c.HighGain,
		PeakCeiling:   c.PeakCeiling,
	}
}

// AttenuationCurve returns one gain per FFT bin (fftSize/2+1 bins).
func (p Params) AttenuationCurve() []float64 {
	bins := p.FFTSize/2 + 1
	curve := make([]float64, bins)
	for k := range curve {
		f := binFrequency(k, p.AnalysisRate, p.FFTSize)
		if f < p.VocalCutoffHz {
			curve[k] = p.LowGainStart + (p.LowGainEnd-p.LowGainStart)*f/p.VocalCutoffHz
		} else {
			curve[k] = p.HighGain
		}
	}
	return curve
}

// Spectral is the default background producer used by the pipeline.
type Spectral struct {
	params Params
	curve  []float64
}

func New(p Params) (*Spectral, error) {
	if p.AnalysisRate <= 0 {
		return nil, fmt.Errorf("isolator: %w: %d", audio.ErrInvalidSampleRate, p.AnalysisRate)
	}
	if p.FFTSize < 2 || p.FFTSize&(p.FFTSize-1) != 0 {
		return nil, fmt.Errorf("isolator: fft size %d is not a power of two", p.FFTSize)
	}
	if p.HopSize <= 0 || p.HopSize > p.FFTSize {
		return nil, fmt.Errorf("isolator: hop %d out of range for fft %d", p.HopSize, p.FFTSize)
	}
	if p.VocalCutoffHz <= 0 {
		return nil, fmt.Errorf("isolator: cutoff must be positive, got %g", p.VocalCutoffHz)
	}
	return &Spectral{params: p, curve: p.AttenuationCurve()}, nil
}

// Isolate returns a track at the input's rate, length and channel count with
// the vocal band attenuated and the peak at PeakCeiling.
func (s *Spectral) Isolate(in audio.Track) (audio.Track, error) {
	if in.Len() == 0 || in.NumChannels() == 0 {
		return audio.Track{}, ErrEmptyInput
	}

	work, err := audio.Resample(in, s.params.AnalysisRate)
	if err != nil {
		return audio.Track{}, fmt.Errorf("isolator: load at %d Hz: %w", s.params.AnalysisRate, err)
	}

	an := newSTFT(s.params.FFTSize, s.params.HopSize)
	filtered := make([][]float64, work.NumChannels())
	for c, ch := range work.Channels {
		frames := an.analyze(ch)
		for _, fr := range frames {
			floats.Mul(fr.magnitude, s.curve)
		}
		filtered[c] = an.synthesize(frames, len(ch))
	}
	out, err := audio.NewTrack(work.SampleRate, filtered...)
	if err != nil {
		return audio.Track{}, fmt.Errorf("isolator: rebuild track: %w", err)
	}

	out, err = audio.Resample(out, in.SampleRate)
	if err != nil {
		return audio.Track{}, fmt.Errorf("isolator: restore %d Hz: %w", in.SampleRate, err)
	}
	out = audio.Fit(out, in.Len())
	return out.Normalized(s.params.PeakCeiling), nil
}
