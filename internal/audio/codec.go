package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

var ErrUnknownFormat = errors.New("unrecognised audio format")

const streamChunk = 4096

// Decode reads a whole WAV or MP3 stream into memory. The container is sniffed
// from the first bytes; rc is closed before returning.
func Decode(rc io.ReadCloser) (Track, error) {
	br := bufio.NewReader(rc)
	head, _ := br.Peek(12)

	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch {
	case isWAV(head):
		s, format, err = wav.Decode(br)
	case isMP3(head):
		s, format, err = mp3.Decode(readCloser{Reader: br, Closer: rc})
	default:
		rc.Close()
		return Track{}, ErrUnknownFormat
	}
	if err != nil {
		rc.Close()
		return Track{}, fmt.Errorf("decode audio: %w", err)
	}
	defer s.Close()
	defer rc.Close()

	channels := format.NumChannels
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	return drain(s, int(format.SampleRate), channels, s.Len())
}

// DecodeBytes decodes an in-memory WAV or MP3 payload.
func DecodeBytes(data []byte) (Track, error) {
	return Decode(io.NopCloser(bytes.NewReader(data)))
}

// DecodeFile opens and decodes path.
func DecodeFile(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, fmt.Errorf("open audio: %w", err)
	}
	t, err := Decode(f)
	if err != nil {
		return Track{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Encode writes t as 16-bit PCM WAV, clipping to the codec's range. Tracks with
// more than two channels are downmixed to mono.
func Encode(w io.WriteSeeker, t Track) error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, t.SampleRate)
	}
	if t.NumChannels() == 0 {
		return ErrNoChannels
	}
	if t.NumChannels() > 2 {
		t = t.Mono()
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(t.SampleRate),
		NumChannels: t.NumChannels(),
		Precision:   2,
	}
	if err := wav.Encode(w, newStreamer(t.Clipped()), format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// WriteFile encodes t as WAV at path.
func WriteFile(path string, t Track) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isWAV(head []byte) bool {
	return len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE"
}

func isMP3(head []byte) bool {
	if len(head) >= 3 && string(head[0:3]) == "ID3" {
		return true
	}
	return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

type readCloser struct {
	io.Reader
	io.Closer
}

// drain pulls every frame out of s. sizeHint may be <= 0 when unknown.
func drain(s beep.Streamer, sampleRate, channels, sizeHint int) (Track, error) {
	if sizeHint < 0 {
		sizeHint = 0
	}
	chs := make([][]float64, channels)
	for i := range chs {
		chs[i] = make([]float64, 0, sizeHint)
	}
	buf := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			for c := range chs {
				chs[c] = append(chs[c], frame[c])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return Track{}, fmt.Errorf("stream audio: %w", err)
	}
	return NewTrack(sampleRate, chs...)
}

// trackStreamer exposes a Track as a beep.Streamer. Mono is duplicated onto
// both stereo slots, which beep averages back when encoding one channel.
type trackStreamer struct {
	t   Track
	pos int
}

func newStreamer(t Track) *trackStreamer { return &trackStreamer{t: t} }

func (s *trackStreamer) Stream(samples [][2]float64) (int, bool) {
	remaining := s.t.Len() - s.pos
	if remaining <= 0 {
		return 0, false
	}
	n := min(len(samples), remaining)
	left := s.t.Channels[0]
	right := left
	if s.t.NumChannels() > 1 {
		right = s.t.Channels[1]
	}
	for i := 0; i < n; i++ {
		samples[i][0] = left[s.pos+i]
		samples[i][1] = right[s.pos+i]
	}
	s.pos += n
	return n, true
}

func (s *trackStreamer) Err() error { return nil }

// EncodeBytes returns t as an in-memory WAV payload.
func EncodeBytes(t Track) ([]byte, error) {
	var buf memFile
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// memFile is the minimal io.WriteSeeker the WAV encoder needs to patch its
// header after streaming.
type memFile struct {
	data []byte
	pos  int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	m.pos = abs
	return abs, nil
}
