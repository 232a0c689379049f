package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voice-dub-go/internal/pipeline"
	"voice-dub-go/internal/processor"
	"voice-dub-go/internal/types"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		lang     string
		speaker  string
		timeout  time.Duration
		jsonMode bool
	)
	cmd := &cobra.Command{
		Use:   "run <audio>",
		Short: "Dub a single audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()
			orch, err := pipeline.FromConfig(cfg, log.Entry)
			if err != nil {
				return err
			}

			job := types.DubJob{AudioPath: args[0], TargetLanguage: lang, Speaker: speaker}
			res, runErr := processor.ProcessJob(cmd.Context(), orch, job, processor.Options{
				Timeout:   timeout,
				Subtitles: cfg.Export.Subtitles,
				OutputDir: cfg.Export.OutputDir,
			}, log.Entry)

			out := cmd.OutOrStdout()
			if jsonMode {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
				return runErr
			}
			fmt.Fprintln(out, renderStages(res.Result.Stages))
			fmt.Fprintln(out, renderArtifacts(res))
			if runErr != nil {
				return fmt.Errorf("dub failed: %w", runErr)
			}
			if !res.Result.TTSAvailable {
				fmt.Fprintln(out, "speech synthesis unavailable: text and subtitles only")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language code (default from config)")
	cmd.Flags().StringVarP(&speaker, "speaker", "s", "", "Speaker/voice identifier (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall timeout for the job")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the full result as JSON")
	return cmd
}
