// Package pipeline runs one dubbing job through transcription, translation,
// synthesis, isolation and mixing. Only transcription and full-text
// translation can abort a run; every later stage degrades instead.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/config"
	"voice-dub-go/internal/logger"
	"voice-dub-go/internal/synthesis"
	"voice-dub-go/internal/transcription"
	"voice-dub-go/internal/translation"
	"voice-dub-go/internal/types"
)

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrNoAudioPath     = errors.New("job has no audio path")
	ErrMissingProvider = errors.New("missing mandatory provider")
)

// Isolator turns a full mix into a background-only track.
type Isolator interface {
	Isolate(audio.Track) (audio.Track, error)
}

// Separator is an external source-separation service. It writes its two
// outputs under workDir.
type Separator interface {
	Separate(ctx context.Context, audioPath, workDir string) (voicePath, backgroundPath string, err error)
}

// Deps are the swappable collaborators. Synthesizer, Isolator and Separator
// may be nil; the matching stage is then skipped.
type Deps struct {
	Transcriber transcription.Transcriber
	Translator  translation.Translator
	Synthesizer synthesis.Synthesizer
	Isolator    Isolator
	Separator   Separator
}

// FatalError marks a run that stopped before Done.
type FatalError struct {
	Stage State
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

type Orchestrator struct {
	cfg  config.Config
	deps Deps
	log  *logrus.Entry
}

func New(cfg config.Config, deps Deps, log *logrus.Entry) (*Orchestrator, error) {
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("%w: transcriber", ErrMissingProvider)
	}
	if deps.Translator == nil {
		return nil, fmt.Errorf("%w: translator", ErrMissingProvider)
	}
	if cfg.SegmentWords < 1 {
		cfg.SegmentWords = config.DefaultSegmentWords
	}
	if cfg.TranslateConcurrency < 1 {
		cfg.TranslateConcurrency = 1
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: log.WithField("component", "pipeline")}, nil
}

// Run always returns the result built so far. The error is non-nil only for
// fatal outcomes and is then a *FatalError.
func (o *Orchestrator) Run(ctx context.Context, job types.DubJob) (types.PipelineResult, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.TargetLanguage == "" {
		job.TargetLanguage = o.cfg.TargetLanguage
	}
	if job.Speaker == "" {
		job.Speaker = o.cfg.Speaker
	}

	r := &run{
		o:   o,
		job: job,
		log: (&logger.Logger{Entry: o.log}).WithJob(job.ID).WithField("target_lang", job.TargetLanguage),
		res: types.PipelineResult{
			JobID:              job.ID,
			Segments:           []types.Segment{},
			TranslatedSegments: []types.Segment{},
		},
	}
	if strings.TrimSpace(job.AudioPath) == "" {
		r.report(StateTranscribe, types.OutcomeFatal, ErrNoAudioPath, time.Now())
		return r.res, &FatalError{Stage: StateTranscribe, Err: ErrNoAudioPath}
	}

	workDir, err := os.MkdirTemp("", "dub-"+job.ID+"-")
	if err != nil {
		return r.res, &FatalError{Stage: StateTranscribe, Err: fmt.Errorf("create work dir: %w", err)}
	}
	defer os.RemoveAll(workDir)
	r.workDir = workDir

	r.log.WithField("audio_path", job.AudioPath).Info("dub job started")
	start := time.Now()
	for state := StateTranscribe; state != StateDone; {
		next, err := r.step(ctx, state)
		if err != nil {
			r.log.WithField("stage", state.String()).WithField("error", err.Error()).Error("dub job aborted")
			return r.res, &FatalError{Stage: state, Err: err}
		}
		state = next
	}
	r.log.WithFields(logrus.Fields{
		"duration_ms":   time.Since(start).Milliseconds(),
		"tts_available": r.res.TTSAvailable,
		"degraded":      r.res.Degraded(),
	}).Info("dub job finished")
	return r.res, nil
}
