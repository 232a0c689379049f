// Package speech turns a piece of text into a WAV clip, translating it first
// when asked.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/synthesis"
	"voice-dub-go/internal/translation"
)

var (
	ErrEmptyText   = errors.New("speech: text is empty")
	ErrTranslation = errors.New("speech: translation failed")
)

type Request struct {
	Text           string `json:"text"`
	Translate      bool   `json:"translate"`
	TargetLanguage string `json:"target_lang,omitempty"`
	Speaker        string `json:"speaker,omitempty"`
}

type Result struct {
	Text       string
	Translated bool
	WAV        []byte
}

// Service may run without a translator; translation requests then speak the
// text as given.
type Service struct {
	translator translation.Translator
	synth      synthesis.Synthesizer
	language   string
	speaker    string
	log        *logrus.Entry
}

func New(translator translation.Translator, synth synthesis.Synthesizer, language, speaker string, log *logrus.Entry) *Service {
	return &Service{
		translator: translator,
		synth:      synth,
		language:   language,
		speaker:    speaker,
		log:        log.WithField("component", "speech"),
	}
}

func (s *Service) Speak(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, ErrEmptyText
	}
	lang := req.TargetLanguage
	if lang == "" {
		lang = s.language
	}
	speaker := req.Speaker
	if speaker == "" {
		speaker = s.speaker
	}
	log := s.log.WithFields(logrus.Fields{"target_lang": lang, "speaker": speaker, "chars": len(text)})

	res := Result{Text: text}
	if req.Translate {
		if s.translator == nil {
			log.Warn("no translator configured, speaking source text")
		} else {
			translated, err := s.translator.Translate(ctx, text, lang)
			if err != nil {
				return res, fmt.Errorf("%w: %w", ErrTranslation, err)
			}
			if strings.TrimSpace(translated) != "" {
				res.Text = translated
				res.Translated = true
			}
		}
	}

	raw, err := s.synth.Synthesize(ctx, res.Text, speaker)
	if err != nil {
		return res, err
	}
	// Providers may answer with MP3; callers always get WAV.
	track, err := audio.DecodeBytes(raw)
	if err != nil {
		return res, fmt.Errorf("decode synthesized audio: %w", err)
	}
	res.WAV, err = audio.EncodeBytes(track)
	if err != nil {
		return res, fmt.Errorf("encode wav: %w", err)
	}
	log.WithFields(logrus.Fields{"translated": res.Translated, "duration_ms": track.DurationMs()}).Info("speech ready")
	return res, nil
}
