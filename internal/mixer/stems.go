package mixer

import "voice-dub-go/internal/audio"

// StemKind names one independently exportable component of a dub.
type StemKind string

const (
	StemVoice      StemKind = "voice"
	StemBackground StemKind = "background"
	StemOriginal   StemKind = "original"
)

// Stems copies every non-nil track into its own stem. The original stem is the
// source at unmodified gain.
func Stems(voice, background, original *audio.Track) map[StemKind]audio.Track {
	out := make(map[StemKind]audio.Track, 3)
	if voice != nil {
		out[StemVoice] = voice.Clone()
	}
	if background != nil {
		out[StemBackground] = background.Clone()
	}
	if original != nil {
		out[StemOriginal] = original.Clone()
	}
	return out
}
