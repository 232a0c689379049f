package isolator

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// frame is one analysis window in polar form. It never leaves this package.
type frame struct {
	magnitude []float64
	phase     []float64
}

// stft analyses signal with a periodic Hann window. The signal is centred by
// padding fftSize/2 zeros on the left and enough on the right to land the last
// window exactly on the padded end.
type stft struct {
	fftSize int
	hop     int
	window  []float64
	fft     *fourier.FFT
}

func newSTFT(fftSize, hop int) *stft {
	return &stft{
		fftSize: fftSize,
		hop:     hop,
		window:  hann(fftSize),
		fft:     fourier.NewFFT(fftSize),
	}
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func (s *stft) padded(n int) (pad, total, frames int) {
	pad = s.fftSize / 2
	total = n + 2*pad
	if total < s.fftSize {
		total = s.fftSize
	}
	frames = 1 + (total-s.fftSize+s.hop-1)/s.hop
	total = (frames-1)*s.hop + s.fftSize
	return pad, total, frames
}

func (s *stft) analyze(signal []float64) []frame {
	pad, total, count := s.padded(len(signal))
	buf := make([]float64, total)
	copy(buf[pad:], signal)

	frames := make([]frame, count)
	seg := make([]float64, s.fftSize)
	coeffs := make([]complex128, s.fftSize/2+1)
	for f := range frames {
		off := f * s.hop
		for i := range seg {
			seg[i] = buf[off+i] * s.window[i]
		}
		s.fft.Coefficients(coeffs, seg)
		fr := frame{
			magnitude: make([]float64, len(coeffs)),
			phase:     make([]float64, len(coeffs)),
		}
		for k, c := range coeffs {
			fr.magnitude[k] = cmplx.Abs(c)
			fr.phase[k] = cmplx.Phase(c)
		}
		frames[f] = fr
	}
	return frames
}

// synthesize inverts analyze with weighted overlap-add and returns exactly n
// samples.
func (s *stft) synthesize(frames []frame, n int) []float64 {
	pad, total, _ := s.padded(n)
	out := make([]float64, total)
	norm := make([]float64, total)

	coeffs := make([]complex128, s.fftSize/2+1)
	seg := make([]float64, s.fftSize)
	scale := 1 / float64(s.fftSize)
	for f, fr := range frames {
		for k := range coeffs {
			coeffs[k] = cmplx.Rect(fr.magnitude[k], fr.phase[k])
		}
		s.fft.Sequence(seg, coeffs)
		off := f * s.hop
		for i, v := range seg {
			w := s.window[i]
			out[off+i] += v * scale * w
			norm[off+i] += w * w
		}
	}
	for i := range out {
		if norm[i] > 1e-10 {
			out[i] /= norm[i]
		}
	}
	result := make([]float64, n)
	copy(result, out[pad:])
	return result
}

// binFrequency is the centre frequency of bin k.
func binFrequency(k, sampleRate, fftSize int) float64 {
	return float64(k) * float64(sampleRate) / float64(fftSize)
}
