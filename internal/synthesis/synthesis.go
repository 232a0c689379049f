package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/config"
)

var (
	ErrNonSuccess = errors.New("speech synthesis returned non-success status")
	ErrEmptyAudio = errors.New("speech synthesis returned no audio")
)

// Synthesizer renders text as speech audio bytes (WAV or MP3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, speaker string) ([]byte, error)
}

// StatusError carries the provider's HTTP status for a non-success response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tts api returned status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrNonSuccess }

// Client posts {text, language, speaker_key} with an x-api-key header, the
// contract of the Kurdish TTS proxy.
type Client struct {
	url          string
	apiKey       string
	language     string
	http         *http.Client
	retryWindow  time.Duration
	retryInitial time.Duration
	log          *logrus.Entry
}

// NewClient never fails on a missing key: synthesis is optional, so the
// missing credential surfaces from Synthesize and the pipeline degrades.
func NewClient(cfg config.Provider, language string, log *logrus.Entry) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:          cfg.BaseURL,
		apiKey:       cfg.APIKey,
		language:     language,
		http:         &http.Client{Timeout: timeout},
		retryWindow:  15 * time.Second,
		retryInitial: 500 * time.Millisecond,
		log:          log.WithField("module", "synthesis"),
	}
}

type ttsRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	SpeakerKey string `json:"speaker_key"`
}

func (c *Client) Synthesize(ctx context.Context, text, speaker string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("synthesis: %w", config.ErrMissingCredential)
	}
	payload, err := json.Marshal(ttsRequest{Text: text, Language: c.language, SpeakerKey: speaker})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	log := c.log.WithFields(logrus.Fields{"speaker": speaker, "chars": len(text)})
	log.Info("generating speech")

	var audio []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{Status: resp.StatusCode, Body: truncate(body, 500)}
			if resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		audio = body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxElapsedTime = c.retryWindow
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		log.WithField("error", err.Error()).Warn("tts api error")
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	log.WithField("bytes", len(audio)).Info("speech generated")
	return audio, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
