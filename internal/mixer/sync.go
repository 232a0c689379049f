package mixer

import "voice-dub-go/internal/audio"

// Pad returns copies of a and b extended with trailing silence to the longer
// length. Never fails; zero-length inputs are valid.
func Pad(a, b audio.Track) (audio.Track, audio.Track) {
	n := max(a.Len(), b.Len())
	return audio.Fit(a, n), audio.Fit(b, n)
}

// Trim returns copies of a and b cut to the shorter length.
func Trim(a, b audio.Track) (audio.Track, audio.Track) {
	n := min(a.Len(), b.Len())
	return audio.Fit(a, n), audio.Fit(b, n)
}

// FitTo makes overlay exactly as long as base, trimming or padding overlay.
// base is returned as an untouched copy; its length is authoritative.
func FitTo(base, overlay audio.Track) (audio.Track, audio.Track) {
	return base.Clone(), audio.Fit(overlay, base.Len())
}
