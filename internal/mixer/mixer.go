// Package mixer synchronises and sums tracks into a dub composite and hands
// out the individual stems alongside it.
package mixer

import (
	"errors"
	"fmt"
	"math"

	"voice-dub-go/internal/audio"
)

var ErrNoSampleRate = errors.New("mixer: base track has no sample rate")

// Policy selects how base and overlay are brought to a common length.
type Policy int

const (
	// PolicyPad extends the shorter track with silence.
	PolicyPad Policy = iota
	// PolicyFitToBase trims (or pads) the overlay to the base length.
	PolicyFitToBase
)

func (p Policy) String() string {
	switch p {
	case PolicyPad:
		return "pad"
	case PolicyFitToBase:
		return "fit-to-base"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// MixPlan is consumed once by Mix.
type MixPlan struct {
	BaseTrack    audio.Track
	OverlayTrack audio.Track
	BaseGainDB   float64
	Policy       Policy
}

// DubOverOriginal keeps the source ambience under the synthesized voice by
// attenuating the full original track.
func DubOverOriginal(original, voice audio.Track, baseGainDB float64) MixPlan {
	return MixPlan{BaseTrack: original, OverlayTrack: voice, BaseGainDB: baseGainDB, Policy: PolicyPad}
}

// DubOverBackground lays the voice over an isolated background at unity gain.
// The background length wins.
func DubOverBackground(background, voice audio.Track) MixPlan {
	return MixPlan{BaseTrack: background, OverlayTrack: voice, BaseGainDB: 0, Policy: PolicyFitToBase}
}

// DBToGain converts decibels to a linear amplitude factor.
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// Mix returns base*gain + overlay. The overlay is resampled to the base rate
// and matched to its channel count; neither input is modified. Range limiting
// is left to the encoder.
func Mix(plan MixPlan) (audio.Track, error) {
	base := plan.BaseTrack
	if base.SampleRate <= 0 {
		return audio.Track{}, ErrNoSampleRate
	}
	if base.NumChannels() == 0 {
		base = audio.Silence(base.SampleRate, 1, 0)
	}

	overlay := plan.OverlayTrack
	if overlay.NumChannels() == 0 {
		overlay = audio.Silence(base.SampleRate, base.NumChannels(), 0)
	}
	if overlay.SampleRate != base.SampleRate {
		var err error
		overlay, err = audio.Resample(overlay, base.SampleRate)
		if err != nil {
			return audio.Track{}, fmt.Errorf("mixer: align overlay rate: %w", err)
		}
	}
	overlay = overlay.WithChannels(base.NumChannels())

	switch plan.Policy {
	case PolicyFitToBase:
		base, overlay = FitTo(base, overlay)
	default:
		base, overlay = Pad(base, overlay)
	}

	gain := DBToGain(plan.BaseGainDB)
	out := base.Scaled(gain)
	for c, ch := range out.Channels {
		ov := overlay.Channels[c]
		for i := range ch {
			ch[i] += ov[i]
		}
	}
	return out, nil
}
