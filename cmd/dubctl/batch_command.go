package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voice-dub-go/internal/actionable"
	"voice-dub-go/internal/aggregator"
	"voice-dub-go/internal/dataset"
	"voice-dub-go/internal/pipeline"
	"voice-dub-go/internal/processor"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		report  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx>",
		Short: "Dub every audio file listed in a spreadsheet manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()
			jobs, err := dataset.LoadJobs(args[0])
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			log.WithField("jobs", len(jobs)).Info("manifest loaded")

			orch, err := pipeline.FromConfig(cfg, log.Entry)
			if err != nil {
				return err
			}
			opts := processor.Options{Timeout: timeout, Subtitles: cfg.Export.Subtitles, OutputDir: cfg.Export.OutputDir}

			results := make([]processor.JobResult, 0, len(jobs))
			for _, job := range jobs {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				res, err := processor.ProcessJob(cmd.Context(), orch, job, opts, log.Entry)
				if err != nil {
					log.WithField("audio_path", job.AudioPath).WithField("error", err.Error()).Warn("job failed")
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderJobs(results))

			summary := aggregator.Aggregate(results)
			card := actionable.Generate(summary)
			fmt.Fprintln(out, renderTable(
				[]string{"Total", "OK", "Fatal", "Speech", "Degraded", "Avg ms"},
				[][]string{{
					strconv.Itoa(summary.Total),
					strconv.Itoa(summary.Succeeded),
					strconv.Itoa(summary.Fatal),
					strconv.Itoa(summary.TTSAvailable),
					strconv.Itoa(summary.Degraded),
					strconv.FormatFloat(summary.AvgDurationMs, 'f', 0, 64),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "%s\n  -> %s\n", card.Insight, card.Action)

			if report != "" {
				if err := dataset.WriteReport(report, results); err != nil {
					return err
				}
				fmt.Fprintf(out, "report written to %s\n", report)
			}
			if summary.Fatal > 0 {
				return fmt.Errorf("%d of %d jobs failed", summary.Fatal, summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&report, "report", "r", "", "Write an xlsx report to this path")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Timeout per job")
	return cmd
}
