package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/logger"
	"voice-dub-go/internal/subtitle"
	"voice-dub-go/internal/types"
)

// SubtitleStage names the report appended for the SRT export.
const SubtitleStage = "subtitles"

// Runner is the part of the orchestrator a job needs.
type Runner interface {
	Run(ctx context.Context, job types.DubJob) (types.PipelineResult, error)
}

// JobResult is returned by /dub and collected by batch runs
type JobResult struct {
	Job               types.DubJob         `json:"job"`
	Result            types.PipelineResult `json:"result"`
	OriginalSRTPath   string               `json:"original_srt_path,omitempty"`
	TranslatedSRTPath string               `json:"translated_srt_path,omitempty"`
	DurationMs        int64                `json:"duration_ms"`
	Error             string               `json:"error,omitempty"`
}

// Options controls the per-job extras around the pipeline run.
type Options struct {
	Timeout   time.Duration
	Subtitles bool
	OutputDir string
}

// ProcessJob assigns a job id, bounds the run with opts.Timeout and writes the
// subtitle tracks next to the audio artifacts. The pipeline error is returned
// unchanged so callers can tell fatal runs apart.
func ProcessJob(ctx context.Context, runner Runner, job types.DubJob, opts Options, log *logrus.Entry) (JobResult, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	res := JobResult{Job: job}
	log = (&logger.Logger{Entry: log}).WithJob(job.ID).WithField("component", "processor")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	out, err := runner.Run(ctx, job)
	res.Result = out
	if err != nil {
		res.Error = fmt.Sprintf("pipeline error: %v", err)
		res.DurationMs = time.Since(start).Milliseconds()
		return res, err
	}

	if opts.Subtitles {
		subStart := time.Now()
		rep := types.StageReport{Stage: SubtitleStage, Outcome: types.OutcomeSuccess}
		if err := writeSubtitles(&res, opts.OutputDir); err != nil {
			log.WithField("error", err.Error()).Warn("subtitle export failed")
			rep.Outcome = types.OutcomeDegraded
			rep.Error = err.Error()
		}
		rep.DurationMs = time.Since(subStart).Milliseconds()
		res.Result.Stages = append(res.Result.Stages, rep)
	}

	res.DurationMs = time.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"duration_ms":   res.DurationMs,
		"tts_available": out.TTSAvailable,
		"segments":      len(out.Segments),
	}).Info("job processed")
	return res, nil
}

func writeSubtitles(res *JobResult, outputDir string) error {
	dir := filepath.Join(outputDir, res.Job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subtitle dir: %w", err)
	}
	orig := filepath.Join(dir, "original.srt")
	if err := subtitle.WriteSRT(orig, res.Result.Segments); err != nil {
		return err
	}
	res.OriginalSRTPath = orig

	translated := filepath.Join(dir, "translated.srt")
	if err := subtitle.WriteSRT(translated, res.Result.TranslatedSegments); err != nil {
		return err
	}
	res.TranslatedSRTPath = translated
	return nil
}
