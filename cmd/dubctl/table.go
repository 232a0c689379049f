package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"voice-dub-go/internal/processor"
	"voice-dub-go/internal/types"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderStages(stages []types.StageReport) string {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{s.Stage, string(s.Outcome), strconv.FormatInt(s.DurationMs, 10), s.Error})
	}
	return renderTable([]string{"Stage", "Outcome", "ms", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
}

func renderArtifacts(res processor.JobResult) string {
	var rows [][]string
	add := func(name, path string) {
		if path != "" {
			rows = append(rows, []string{name, path})
		}
	}
	add("mixed", res.Result.MixedAudioPath)
	add("voice", res.Result.VoicePath)
	add("background", res.Result.BackgroundPath)
	add("original", res.Result.OriginalPath)
	add("subtitles", res.OriginalSRTPath)
	add("translated subtitles", res.TranslatedSRTPath)
	return renderTable([]string{"Artifact", "Path"}, rows, nil)
}

func renderJobs(results []processor.JobResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		switch {
		case r.Error != "":
			status = "fatal"
		case r.Result.Degraded():
			status = "degraded"
		}
		rows = append(rows, []string{
			r.Job.ID,
			r.Job.AudioPath,
			status,
			strconv.FormatBool(r.Result.TTSAvailable),
			strconv.Itoa(len(r.Result.TranslatedSegments)) + "/" + strconv.Itoa(len(r.Result.Segments)),
			strconv.FormatInt(r.DurationMs, 10),
		})
	}
	return renderTable([]string{"Job", "Audio", "Status", "Speech", "Segments", "ms"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight})
}
