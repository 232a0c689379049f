package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"voice-dub-go/internal/types"
)

var audioExts = map[string]bool{".wav": true, ".mp3": true, ".m4a": true, ".mp4": true, ".flac": true, ".ogg": true, ".webm": true}

// LoadJobs reads a batch manifest. Columns are detected by header
// heuristics; relative audio paths resolve against the manifest's directory.
func LoadJobs(path string) ([]types.DubJob, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	header := rows[0]
	audioIdx := -1
	idIdx := -1
	langIdx := -1
	speakerIdx := -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "path") || strings.Contains(l, "file"):
			if audioIdx == -1 {
				audioIdx = i
			}
		case strings.Contains(l, "lang"):
			if langIdx == -1 {
				langIdx = i
			}
		case strings.Contains(l, "speaker") || strings.Contains(l, "voice"):
			if speakerIdx == -1 {
				speakerIdx = i
			}
		case l == "id" || strings.Contains(l, "job"):
			if idIdx == -1 {
				idIdx = i
			}
		}
	}
	if audioIdx == -1 {
		audioIdx = 0
	}

	base := filepath.Dir(path)
	var out []types.DubJob
	for i, r := range rows {
		if i == 0 {
			continue
		}
		job := types.DubJob{
			ID:             cell(r, idIdx),
			AudioPath:      cell(r, audioIdx),
			TargetLanguage: cell(r, langIdx),
			Speaker:        cell(r, speakerIdx),
		}
		// skip rows that do not name an audio file
		if !audioExts[strings.ToLower(filepath.Ext(job.AudioPath))] {
			continue
		}
		if !filepath.IsAbs(job.AudioPath) {
			job.AudioPath = filepath.Join(base, job.AudioPath)
		}
		out = append(out, job)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
