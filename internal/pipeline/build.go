package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/config"
	"voice-dub-go/internal/isolator"
	"voice-dub-go/internal/separation"
	"voice-dub-go/internal/synthesis"
	"voice-dub-go/internal/transcription"
	"voice-dub-go/internal/translation"
)

// FromConfig wires the real or mock providers selected by cfg.
func FromConfig(cfg config.Config, log *logrus.Entry) (*Orchestrator, error) {
	deps, err := BuildDeps(cfg, log)
	if err != nil {
		return nil, err
	}
	return New(cfg, deps, log)
}

// BuildDeps constructs the providers selected by cfg so callers outside the
// orchestrator (the text-to-speech surfaces) share the same clients.
func BuildDeps(cfg config.Config, log *logrus.Entry) (Deps, error) {
	if err := cfg.Validate(); err != nil {
		return Deps{}, fmt.Errorf("invalid config: %w", err)
	}
	var deps Deps

	if cfg.Transcription.Mock {
		log.Warn("using mock transcription")
		deps.Transcriber = transcription.Mock{}
	} else {
		c, err := transcription.NewClient(cfg.Transcription, log)
		if err != nil {
			return Deps{}, err
		}
		deps.Transcriber = c
	}

	if cfg.Translation.Mock {
		log.Warn("using mock translation")
		deps.Translator = translation.Mock{}
	} else {
		c, err := translation.NewClient(cfg.Translation, log)
		if err != nil {
			return Deps{}, err
		}
		deps.Translator = c
	}

	if cfg.Synthesis.Mock {
		log.Warn("using mock speech synthesis")
		deps.Synthesizer = synthesis.Mock{}
	} else {
		deps.Synthesizer = synthesis.NewClient(cfg.Synthesis, cfg.SynthesisLanguage, log)
	}

	if cfg.Isolation.Enabled {
		iso, err := isolator.New(isolator.FromConfig(cfg.Isolation))
		if err != nil {
			return Deps{}, err
		}
		deps.Isolator = iso
	}
	if cfg.Separation.Enabled {
		deps.Separator = separation.NewDemucs(log,
			separation.WithBinary(cfg.Separation.Binary),
			separation.WithModel(cfg.Separation.Model),
			separation.WithTimeout(time.Duration(cfg.Separation.TimeoutSec)*time.Second),
		)
	}
	return deps, nil
}
