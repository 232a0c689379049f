package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"voice-dub-go/internal/processor"
)

const (
	jobsSheet     = "jobs"
	segmentsSheet = "segments"
)

var jobsHeader = []interface{}{"job_id", "audio_path", "target_language", "tts_available", "degraded", "mixed_audio_path", "segments", "translated_segments", "duration_ms", "error"}

var segmentsHeader = []interface{}{"job_id", "index", "start", "end", "original", "translated"}

// WriteReport writes one summary row per job and one row per segment.
func WriteReport(path string, results []processor.JobResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(segmentsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeRow(f, jobsSheet, 1, jobsHeader); err != nil {
		return err
	}
	if err := writeRow(f, segmentsSheet, 1, segmentsHeader); err != nil {
		return err
	}
	for _, sheet := range []string{jobsSheet, segmentsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	segRow := 2
	for i, res := range results {
		r := res.Result
		row := []interface{}{
			res.Job.ID, res.Job.AudioPath, res.Job.TargetLanguage, r.TTSAvailable, r.Degraded(),
			r.MixedAudioPath, len(r.Segments), len(r.TranslatedSegments), res.DurationMs, res.Error,
		}
		if err := writeRow(f, jobsSheet, i+2, row); err != nil {
			return err
		}

		translated := make(map[float64]string, len(r.TranslatedSegments))
		for _, s := range r.TranslatedSegments {
			translated[s.Start] = s.Text
		}
		for j, s := range r.Segments {
			row := []interface{}{res.Job.ID, j + 1, s.Start, s.End, s.Text, translated[s.Start]}
			if err := writeRow(f, segmentsSheet, segRow, row); err != nil {
				return err
			}
			segRow++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
