package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/config"
	"voice-dub-go/internal/logger"
	"voice-dub-go/internal/mixer"
	"voice-dub-go/internal/synthesis"
	"voice-dub-go/internal/types"
)

type fakeTranscriber struct {
	tr    types.Transcript
	err   error
	calls int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (types.Transcript, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.tr, f.err
}

type fakeTranslator struct {
	calls  int32
	failOn map[string]bool
	delay  func(text string) time.Duration
}

func (f *fakeTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay != nil {
		time.Sleep(f.delay(text))
	}
	if f.failOn[text] {
		return "", errors.New("provider unavailable")
	}
	return "T:" + text, nil
}

type fakeSynth struct {
	data  []byte
	err   error
	calls int32
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, speaker string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.data, f.err
}

type fakeIsolator struct {
	err error
}

func (f fakeIsolator) Isolate(t audio.Track) (audio.Track, error) {
	if f.err != nil {
		return audio.Track{}, f.err
	}
	return t.Scaled(0.5), nil
}

type fakeSeparator struct {
	workDir string
	err     error
}

func (f *fakeSeparator) Separate(ctx context.Context, path, workDir string) (string, string, error) {
	f.workDir = workDir
	if f.err != nil {
		return "", "", f.err
	}
	bg := filepath.Join(workDir, "bg.wav")
	tr, err := audio.DecodeFile(path)
	if err != nil {
		return "", "", err
	}
	if err := audio.WriteFile(bg, tr.Scaled(0.25)); err != nil {
		return "", "", err
	}
	return path, bg, nil
}

func sine(rate, frames int, freq, amp float64) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func writeSource(t *testing.T) (string, []float64) {
	t.Helper()
	samples := sine(22050, 22050, 440, 0.5)
	tr, err := audio.NewTrack(22050, samples)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "source.wav")
	if err := audio.WriteFile(path, tr); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path, samples
}

func words(n int) types.Transcript {
	var ws []types.WordSpan
	var text []string
	for i := 0; i < n; i++ {
		w := fmt.Sprintf("w%d", i)
		ws = append(ws, types.WordSpan{Text: w, Start: float64(i) * 0.5, End: float64(i)*0.5 + 0.4})
		text = append(text, w)
	}
	return types.Transcript{Text: strings.Join(text, " "), Language: "en", Words: ws}
}

func speech(t *testing.T) []byte {
	t.Helper()
	data, err := synthesis.Mock{}.Synthesize(context.Background(), "abcdef", "1_speaker")
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Export.OutputDir = t.TempDir()
	return cfg
}

func newOrchestrator(t *testing.T, cfg config.Config, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(cfg, deps, logger.Nop().Entry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func outcome(t *testing.T, res types.PipelineResult, s State) types.Outcome {
	t.Helper()
	rep, ok := res.Stage(s.String())
	if !ok {
		t.Fatalf("stage %s missing from %+v", s, res.Stages)
	}
	return rep.Outcome
}

func TestNewRejectsMissingProviders(t *testing.T) {
	if _, err := New(config.Default(), Deps{Translator: &fakeTranslator{}}, logger.Nop().Entry); !errors.Is(err, ErrMissingProvider) {
		t.Fatalf("expected ErrMissingProvider for transcriber, got %v", err)
	}
	if _, err := New(config.Default(), Deps{Transcriber: &fakeTranscriber{}}, logger.Nop().Entry); !errors.Is(err, ErrMissingProvider) {
		t.Fatalf("expected ErrMissingProvider for translator, got %v", err)
	}
}

func TestRunSynthesisWithoutIsolationDubsOverOriginal(t *testing.T) {
	src, samples := writeSource(t)
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, Deps{
		Transcriber: &fakeTranscriber{tr: words(12)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{data: speech(t)},
	})

	res, err := o.Run(context.Background(), types.DubJob{ID: "job1", AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TTSAvailable {
		t.Fatal("expected tts available")
	}
	if outcome(t, res, StateIsolate) != types.OutcomeSkipped {
		t.Fatalf("isolate outcome = %s", outcome(t, res, StateIsolate))
	}
	if res.BackgroundPath != "" {
		t.Fatalf("unexpected background stem %q", res.BackgroundPath)
	}
	if res.MixedAudioPath != filepath.Join(cfg.Export.OutputDir, "job1", "mixed.wav") {
		t.Fatalf("mixed path = %q", res.MixedAudioPath)
	}

	mixed, err := audio.DecodeFile(res.MixedAudioPath)
	if err != nil {
		t.Fatalf("decode mixed: %v", err)
	}
	if mixed.Len() != len(samples) {
		t.Fatalf("mixed len %d, want %d", mixed.Len(), len(samples))
	}
	// Past the end of the synthesized voice only the attenuated source remains.
	g := mixer.DBToGain(config.DefaultBaseGainDB)
	for _, i := range []int{12000, 15000, 21000} {
		if d := math.Abs(mixed.Channels[0][i] - samples[i]*g); d > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, mixed.Channels[0][i], samples[i]*g)
		}
	}
}

func TestRunSynthesisFailureKeepsText(t *testing.T) {
	src, _ := writeSource(t)
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, Deps{
		Transcriber: &fakeTranscriber{tr: words(25)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{err: &synthesis.StatusError{Status: 503}},
		Isolator:    fakeIsolator{},
	})

	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	if err != nil {
		t.Fatalf("degraded run must not error: %v", err)
	}
	if res.TTSAvailable || res.MixedAudioPath != "" {
		t.Fatalf("tts=%v mixed=%q", res.TTSAvailable, res.MixedAudioPath)
	}
	if res.OriginalText == "" || res.TranslatedText == "" {
		t.Fatal("text missing")
	}
	if len(res.Segments) != 3 || len(res.TranslatedSegments) != 3 {
		t.Fatalf("segments=%d translated=%d", len(res.Segments), len(res.TranslatedSegments))
	}
	if outcome(t, res, StateSynthesize) != types.OutcomeDegraded {
		t.Fatal("synthesize should be degraded")
	}
	for _, s := range []State{StateIsolate, StateMix} {
		if outcome(t, res, s) != types.OutcomeSkipped {
			t.Fatalf("%s should be skipped", s)
		}
	}
	if !res.Degraded() {
		t.Fatal("result should report degradation")
	}
}

func TestRunEmptyTranscriptIsFatal(t *testing.T) {
	src, _ := writeSource(t)
	cfg := testConfig(t)
	tl := &fakeTranslator{}
	synth := &fakeSynth{data: speech(t)}
	o := newOrchestrator(t, cfg, Deps{
		Transcriber: &fakeTranscriber{tr: types.Transcript{Text: "  "}},
		Translator:  tl,
		Synthesizer: synth,
	})

	res, err := o.Run(context.Background(), types.DubJob{ID: "job3", AudioPath: src})
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Stage != StateTranscribe {
		t.Fatalf("expected FatalError at transcribe, got %v", err)
	}
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if tl.calls != 0 || synth.calls != 0 {
		t.Fatalf("downstream stages ran: translate=%d synth=%d", tl.calls, synth.calls)
	}
	if res.MixedAudioPath != "" || res.VoicePath != "" {
		t.Fatal("fatal run produced artifacts")
	}
	if _, err := os.Stat(filepath.Join(cfg.Export.OutputDir, "job3")); !os.IsNotExist(err) {
		t.Fatalf("output dir created for fatal run: %v", err)
	}
	if outcome(t, res, StateTranscribe) != types.OutcomeFatal {
		t.Fatal("transcribe outcome should be fatal")
	}
}

func TestRunTranscriptionErrorIsFatal(t *testing.T) {
	src, _ := writeSource(t)
	o := newOrchestrator(t, testConfig(t), Deps{
		Transcriber: &fakeTranscriber{err: context.DeadlineExceeded},
		Translator:  &fakeTranslator{},
	})
	if _, err := o.Run(context.Background(), types.DubJob{AudioPath: src}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunFullPipelineExportsAllStems(t *testing.T) {
	src, samples := writeSource(t)
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, Deps{
		Transcriber: &fakeTranscriber{tr: words(8)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{data: speech(t)},
		Isolator:    fakeIsolator{},
	})

	res, err := o.Run(context.Background(), types.DubJob{ID: "job4", AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for name, p := range map[string]string{
		"mixed":      res.MixedAudioPath,
		"voice":      res.VoicePath,
		"background": res.BackgroundPath,
		"original":   res.OriginalPath,
	} {
		if p == "" {
			t.Fatalf("%s path empty", name)
		}
		if _, err := audio.DecodeFile(p); err != nil {
			t.Fatalf("%s not decodable: %v", name, err)
		}
	}
	orig, _ := audio.DecodeFile(res.OriginalPath)
	if d := math.Abs(orig.Channels[0][100] - samples[100]); d > 1e-3 {
		t.Fatalf("original stem altered: %v vs %v", orig.Channels[0][100], samples[100])
	}
	mixed, _ := audio.DecodeFile(res.MixedAudioPath)
	if mixed.Len() != len(samples) {
		t.Fatalf("mixed len %d, want background length %d", mixed.Len(), len(samples))
	}
	if outcome(t, res, StateMix) != types.OutcomeSuccess || res.Degraded() {
		t.Fatalf("stages = %+v", res.Stages)
	}
}

func TestRunOmitsFailedSegmentsAndKeepsOrder(t *testing.T) {
	src, _ := writeSource(t)
	tr := words(35)
	cfg := testConfig(t)
	cfg.TranslateConcurrency = 4
	failing := "w10 w11 w12 w13 w14 w15 w16 w17 w18 w19"
	tl := &fakeTranslator{
		failOn: map[string]bool{failing: true},
		// Earlier segments finish last.
		delay: func(text string) time.Duration {
			switch {
			case strings.HasPrefix(text, "w0 "):
				return 30 * time.Millisecond
			case strings.HasPrefix(text, "w20 "):
				return 10 * time.Millisecond
			}
			return 0
		},
	}
	o := newOrchestrator(t, cfg, Deps{Transcriber: &fakeTranscriber{tr: tr}, Translator: tl})

	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Segments) != 4 {
		t.Fatalf("got %d segments, want 4", len(res.Segments))
	}
	if len(res.TranslatedSegments) != 3 {
		t.Fatalf("got %d translated segments, want 3", len(res.TranslatedSegments))
	}
	want := []types.Segment{res.Segments[0], res.Segments[2], res.Segments[3]}
	for i, seg := range res.TranslatedSegments {
		if seg.Text != "T:"+want[i].Text || seg.Start != want[i].Start || seg.End != want[i].End {
			t.Fatalf("translated[%d] = %+v, want text of %+v", i, seg, want[i])
		}
	}
	if outcome(t, res, StateTranslate) != types.OutcomeDegraded {
		t.Fatal("translate should be degraded")
	}
	if outcome(t, res, StateSynthesize) != types.OutcomeSkipped || res.TTSAvailable {
		t.Fatal("synthesis should be skipped without a synthesizer")
	}
}

func TestRunFullTranslationFailureIsFatal(t *testing.T) {
	src, _ := writeSource(t)
	tr := words(3)
	o := newOrchestrator(t, testConfig(t), Deps{
		Transcriber: &fakeTranscriber{tr: tr},
		Translator:  &fakeTranslator{failOn: map[string]bool{tr.Text: true}},
	})
	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Stage != StateTranslate {
		t.Fatalf("expected fatal translate, got %v", err)
	}
	if res.OriginalText != tr.Text {
		t.Fatal("partial result should keep the transcript")
	}
}

func TestRunIsolationFailureFallsBackToOriginal(t *testing.T) {
	src, _ := writeSource(t)
	sep := &fakeSeparator{err: errors.New("model missing")}
	o := newOrchestrator(t, testConfig(t), Deps{
		Transcriber: &fakeTranscriber{tr: words(5)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{data: speech(t)},
		Isolator:    fakeIsolator{err: errors.New("boom")},
		Separator:   sep,
	})
	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome(t, res, StateIsolate) != types.OutcomeDegraded {
		t.Fatal("isolate should be degraded")
	}
	if res.BackgroundPath != "" || res.MixedAudioPath == "" || !res.TTSAvailable {
		t.Fatalf("background=%q mixed=%q tts=%v", res.BackgroundPath, res.MixedAudioPath, res.TTSAvailable)
	}
	if _, err := os.Stat(sep.workDir); !os.IsNotExist(err) {
		t.Fatalf("work dir %q not cleaned up: %v", sep.workDir, err)
	}
}

func TestRunPrefersSeparator(t *testing.T) {
	src, samples := writeSource(t)
	sep := &fakeSeparator{}
	o := newOrchestrator(t, testConfig(t), Deps{
		Transcriber: &fakeTranscriber{tr: words(5)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{data: speech(t)},
		Isolator:    fakeIsolator{},
		Separator:   sep,
	})
	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bg, err := audio.DecodeFile(res.BackgroundPath)
	if err != nil {
		t.Fatalf("decode background: %v", err)
	}
	if d := math.Abs(bg.Channels[0][200] - samples[200]*0.25); d > 1e-3 {
		t.Fatalf("background did not come from separator: %v", bg.Channels[0][200])
	}
	if _, err := os.Stat(sep.workDir); !os.IsNotExist(err) {
		t.Fatal("work dir not cleaned up")
	}
}

func TestRunMixFailureCopiesOriginal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(src, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	o := newOrchestrator(t, testConfig(t), Deps{
		Transcriber: &fakeTranscriber{tr: words(4)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{data: speech(t)},
	})
	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TTSAvailable {
		t.Fatal("tts availability must reflect synthesis, not export")
	}
	if filepath.Base(res.MixedAudioPath) != "mixed.mp4" {
		t.Fatalf("mixed path = %q", res.MixedAudioPath)
	}
	got, err := os.ReadFile(res.MixedAudioPath)
	if err != nil || string(got) != "not really a video" {
		t.Fatalf("fallback copy = %q, %v", got, err)
	}
	if outcome(t, res, StateMix) != types.OutcomeDegraded {
		t.Fatal("mix should be degraded")
	}
	if res.VoicePath == "" {
		t.Fatal("voice stem should still be exported")
	}
}

func TestRunUndecodableSpeechDisablesTTS(t *testing.T) {
	src, _ := writeSource(t)
	o := newOrchestrator(t, testConfig(t), Deps{
		Transcriber: &fakeTranscriber{tr: words(4)},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{data: []byte("<html>error</html>")},
	})
	res, err := o.Run(context.Background(), types.DubJob{AudioPath: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TTSAvailable || res.MixedAudioPath != "" {
		t.Fatalf("tts=%v mixed=%q", res.TTSAvailable, res.MixedAudioPath)
	}
}

func TestRunRequiresAudioPath(t *testing.T) {
	o := newOrchestrator(t, testConfig(t), Deps{Transcriber: &fakeTranscriber{}, Translator: &fakeTranslator{}})
	if _, err := o.Run(context.Background(), types.DubJob{}); !errors.Is(err, ErrNoAudioPath) {
		t.Fatalf("expected ErrNoAudioPath, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateGroupSegments.String() != "group_segments" || State(42).String() != "state(42)" {
		t.Fatal("unexpected state names")
	}
}
