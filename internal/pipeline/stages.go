package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/mixer"
	"voice-dub-go/internal/segmenter"
	"voice-dub-go/internal/types"
)

// run holds everything owned by a single job.
type run struct {
	o       *Orchestrator
	job     types.DubJob
	log     *logrus.Entry
	res     types.PipelineResult
	workDir string
	outDir  string

	transcript types.Transcript
	voice      *audio.Track
	original   *audio.Track
	background *audio.Track
}

func (r *run) step(ctx context.Context, s State) (State, error) {
	switch s {
	case StateTranscribe:
		return r.transcribe(ctx)
	case StateGroupSegments:
		return r.groupSegments()
	case StateTranslate:
		return r.translate(ctx)
	case StateSynthesize:
		return r.synthesize(ctx)
	case StateIsolate:
		return r.isolate(ctx)
	case StateMix:
		return r.mix()
	default:
		return StateDone, nil
	}
}

func (r *run) report(s State, outcome types.Outcome, err error, start time.Time) {
	rep := types.StageReport{
		Stage:      s.String(),
		Outcome:    outcome,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		rep.Error = err.Error()
	}
	r.res.Stages = append(r.res.Stages, rep)

	entry := r.log.WithFields(logrus.Fields{"stage": rep.Stage, "outcome": rep.Outcome, "duration_ms": rep.DurationMs})
	switch outcome {
	case types.OutcomeDegraded:
		entry.WithField("error", rep.Error).Warn("stage degraded")
	case types.OutcomeFatal:
		entry.WithField("error", rep.Error).Error("stage failed")
	default:
		entry.Info("stage finished")
	}
}

func (r *run) skip(reason string, states ...State) {
	for _, s := range states {
		r.res.Stages = append(r.res.Stages, types.StageReport{Stage: s.String(), Outcome: types.OutcomeSkipped, Error: reason})
	}
}

func (r *run) transcribe(ctx context.Context) (State, error) {
	start := time.Now()
	tr, err := r.o.deps.Transcriber.Transcribe(ctx, r.job.AudioPath)
	if err == nil && strings.TrimSpace(tr.Text) == "" {
		err = ErrEmptyTranscript
	}
	if err != nil {
		r.report(StateTranscribe, types.OutcomeFatal, err, start)
		return StateDone, err
	}
	r.transcript = tr
	r.res.OriginalText = strings.TrimSpace(tr.Text)
	r.res.SourceLanguage = tr.Language
	r.report(StateTranscribe, types.OutcomeSuccess, nil, start)
	return StateGroupSegments, nil
}

// groupSegments prefers word timing; providers that only return segments are
// passed through, and a bare transcript becomes one untimed segment.
func (r *run) groupSegments() (State, error) {
	start := time.Now()
	switch {
	case len(r.transcript.Words) > 0:
		r.res.Segments = segmenter.Group(r.transcript.Words, r.o.cfg.SegmentWords)
	case len(r.transcript.Segments) > 0:
		r.res.Segments = append([]types.Segment(nil), r.transcript.Segments...)
	default:
		r.res.Segments = []types.Segment{{Text: r.res.OriginalText}}
	}
	r.log.WithField("segments", len(r.res.Segments)).Debug("segments grouped")
	r.report(StateGroupSegments, types.OutcomeSuccess, nil, start)
	return StateTranslate, nil
}

func (r *run) translate(ctx context.Context) (State, error) {
	start := time.Now()
	full, err := r.o.deps.Translator.Translate(ctx, r.res.OriginalText, r.job.TargetLanguage)
	if err == nil && strings.TrimSpace(full) == "" {
		err = errors.New("translation of full transcript is empty")
	}
	if err != nil {
		err = fmt.Errorf("full transcript: %w", err)
		r.report(StateTranslate, types.OutcomeFatal, err, start)
		return StateDone, err
	}
	r.res.TranslatedText = strings.TrimSpace(full)

	translated, failed := r.translateSegments(ctx)
	r.res.TranslatedSegments = translated
	if failed > 0 {
		r.report(StateTranslate, types.OutcomeDegraded,
			fmt.Errorf("%d of %d segments could not be translated", failed, len(r.res.Segments)), start)
	} else {
		r.report(StateTranslate, types.OutcomeSuccess, nil, start)
	}
	return StateSynthesize, nil
}

// translateSegments fans out one call per segment. Results land in a slot per
// segment index so the output order never depends on completion order.
func (r *run) translateSegments(ctx context.Context) ([]types.Segment, int) {
	segs := r.res.Segments
	slots := make([]*types.Segment, len(segs))
	sem := make(chan struct{}, r.o.cfg.TranslateConcurrency)
	var wg sync.WaitGroup
	for i, seg := range segs {
		wg.Add(1)
		go func(i int, seg types.Segment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			text, err := r.o.deps.Translator.Translate(ctx, seg.Text, r.job.TargetLanguage)
			if err == nil && strings.TrimSpace(text) == "" {
				err = errors.New("empty translation")
			}
			if err != nil {
				r.log.WithFields(logrus.Fields{"segment": i, "error": err.Error()}).Warn("segment translation failed, omitting")
				return
			}
			slots[i] = &types.Segment{Text: strings.TrimSpace(text), Start: seg.Start, End: seg.End}
		}(i, seg)
	}
	wg.Wait()

	out := make([]types.Segment, 0, len(segs))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, len(segs) - len(out)
}

func (r *run) synthesize(ctx context.Context) (State, error) {
	start := time.Now()
	if r.o.deps.Synthesizer == nil {
		r.report(StateSynthesize, types.OutcomeSkipped, errors.New("no speech synthesizer configured"), start)
		r.skip("speech unavailable", StateIsolate, StateMix)
		return StateDone, nil
	}
	data, err := r.o.deps.Synthesizer.Synthesize(ctx, r.res.TranslatedText, r.job.Speaker)
	var voice audio.Track
	if err == nil {
		voice, err = audio.DecodeBytes(data)
		if err != nil {
			err = fmt.Errorf("decode synthesized speech: %w", err)
		}
	}
	if err != nil {
		r.res.TTSAvailable = false
		r.report(StateSynthesize, types.OutcomeDegraded, err, start)
		r.skip("speech unavailable", StateIsolate, StateMix)
		return StateDone, nil
	}
	r.voice = &voice
	r.res.TTSAvailable = true
	r.report(StateSynthesize, types.OutcomeSuccess, nil, start)
	return StateIsolate, nil
}

// isolate tries the external separator first and falls back to the local
// isolator. Any failure leaves background unset, which switches the mix to
// the dub-over-original policy.
func (r *run) isolate(ctx context.Context) (State, error) {
	start := time.Now()
	original, err := audio.DecodeFile(r.job.AudioPath)
	if err != nil {
		r.report(StateIsolate, types.OutcomeDegraded, fmt.Errorf("decode source audio: %w", err), start)
		return StateMix, nil
	}
	r.original = &original

	if r.o.deps.Separator == nil && r.o.deps.Isolator == nil {
		r.report(StateIsolate, types.OutcomeSkipped, errors.New("isolation disabled"), start)
		return StateMix, nil
	}

	var errs []error
	if sep := r.o.deps.Separator; sep != nil {
		bg, err := r.separate(ctx, sep)
		if err == nil {
			r.background = &bg
			r.report(StateIsolate, types.OutcomeSuccess, nil, start)
			return StateMix, nil
		}
		r.log.WithField("error", err.Error()).Warn("source separation failed")
		errs = append(errs, fmt.Errorf("separator: %w", err))
	}
	if iso := r.o.deps.Isolator; iso != nil {
		bg, err := iso.Isolate(original)
		if err == nil {
			r.background = &bg
			r.report(StateIsolate, types.OutcomeSuccess, nil, start)
			return StateMix, nil
		}
		errs = append(errs, fmt.Errorf("isolator: %w", err))
	}
	r.report(StateIsolate, types.OutcomeDegraded, errors.Join(errs...), start)
	return StateMix, nil
}

func (r *run) separate(ctx context.Context, sep Separator) (audio.Track, error) {
	_, bgPath, err := sep.Separate(ctx, r.job.AudioPath, r.workDir)
	if err != nil {
		return audio.Track{}, err
	}
	return audio.DecodeFile(bgPath)
}

// mix exports the stems, then the composite. If the composite cannot be
// produced the source file is copied in its place.
func (r *run) mix() (State, error) {
	start := time.Now()
	outDir := filepath.Join(r.o.cfg.Export.OutputDir, r.job.ID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		r.report(StateMix, types.OutcomeDegraded, fmt.Errorf("create output dir: %w", err), start)
		return StateDone, nil
	}
	r.outDir = outDir

	var stemErr error
	if r.o.cfg.Export.Stems {
		stemErr = r.exportStems()
	}

	mixed, err := r.compose()
	if err == nil {
		path := filepath.Join(outDir, "mixed.wav")
		if err = audio.WriteFile(path, mixed); err == nil {
			r.res.MixedAudioPath = path
		}
	}
	if err != nil {
		fallback, copyErr := r.copyOriginal()
		if copyErr == nil {
			r.res.MixedAudioPath = fallback
		}
		r.report(StateMix, types.OutcomeDegraded, errors.Join(fmt.Errorf("mix: %w", err), copyErr), start)
		return StateDone, nil
	}
	if stemErr != nil {
		r.report(StateMix, types.OutcomeDegraded, stemErr, start)
		return StateDone, nil
	}
	r.report(StateMix, types.OutcomeSuccess, nil, start)
	return StateDone, nil
}

func (r *run) compose() (audio.Track, error) {
	if r.original == nil {
		return audio.Track{}, errors.New("source audio unavailable")
	}
	plan := mixer.DubOverOriginal(*r.original, *r.voice, r.o.cfg.BaseGainDB)
	if r.background != nil {
		plan = mixer.DubOverBackground(*r.background, *r.voice)
	}
	r.log.WithField("policy", plan.Policy.String()).Debug("mixing")
	return mixer.Mix(plan)
}

func (r *run) exportStems() error {
	var errs []error
	for kind, track := range mixer.Stems(r.voice, r.background, r.original) {
		path := filepath.Join(r.outDir, string(kind)+".wav")
		if err := audio.WriteFile(path, track); err != nil {
			errs = append(errs, fmt.Errorf("%s stem: %w", kind, err))
			continue
		}
		switch kind {
		case mixer.StemVoice:
			r.res.VoicePath = path
		case mixer.StemBackground:
			r.res.BackgroundPath = path
		case mixer.StemOriginal:
			r.res.OriginalPath = path
		}
	}
	return errors.Join(errs...)
}

func (r *run) copyOriginal() (string, error) {
	src, err := os.Open(r.job.AudioPath)
	if err != nil {
		return "", fmt.Errorf("copy original: %w", err)
	}
	defer src.Close()

	dst := filepath.Join(r.outDir, "mixed"+strings.ToLower(filepath.Ext(r.job.AudioPath)))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("copy original: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copy original: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("copy original: %w", err)
	}
	return dst, nil
}
