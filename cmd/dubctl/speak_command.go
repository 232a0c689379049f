package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"voice-dub-go/internal/pipeline"
	"voice-dub-go/internal/speech"
)

func newSpeakCommand(ctx *commandContext) *cobra.Command {
	var (
		lang      string
		speaker   string
		output    string
		translate bool
	)
	cmd := &cobra.Command{
		Use:   "speak <text>...",
		Short: "Synthesize text as a WAV file, optionally translating it first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()
			deps, err := pipeline.BuildDeps(cfg, log.Entry)
			if err != nil {
				return err
			}
			svc := speech.New(deps.Translator, deps.Synthesizer, cfg.TargetLanguage, cfg.Speaker, log.Entry)

			res, err := svc.Speak(cmd.Context(), speech.Request{
				Text:           strings.Join(args, " "),
				Translate:      translate,
				TargetLanguage: lang,
				Speaker:        speaker,
			})
			if err != nil {
				return fmt.Errorf("speak: %w", err)
			}
			if err := os.WriteFile(output, res.WAV, 0o644); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Translated {
				fmt.Fprintf(out, "text: %s\n", res.Text)
			}
			fmt.Fprintf(out, "wrote %s (%d bytes)\n", output, len(res.WAV))
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language code (default from config)")
	cmd.Flags().StringVarP(&speaker, "speaker", "s", "", "Speaker/voice identifier (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "speech.wav", "Output WAV path")
	cmd.Flags().BoolVarP(&translate, "translate", "t", false, "Translate the text before speaking it")
	return cmd
}
