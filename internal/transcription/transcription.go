package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"voice-dub-go/internal/config"
	"voice-dub-go/internal/types"
)

var (
	ErrEmptyTranscript = errors.New("transcription returned no text")
	ErrFailed          = errors.New("transcription failed")
)

// Transcriber turns an audio file into timed text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"` // queued, processing, completed, error
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Error        string `json:"error"`
	Words        []struct {
		Text  string `json:"text"`
		Start int64  `json:"start"` // ms
		End   int64  `json:"end"`   // ms
	} `json:"words"`
}

// Client talks to an AssemblyAI-style API: upload bytes, create a transcript
// job, poll until it completes.
type Client struct {
	host         string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
	maxPolls     int
	retryWindow  time.Duration
	retryInitial time.Duration
	log          *logrus.Entry
}

func NewClient(cfg config.Provider, log *logrus.Entry) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcription: %w", config.ErrMissingCredential)
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		host:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		http:         &http.Client{Timeout: timeout},
		pollInterval: 1500 * time.Millisecond,
		maxPolls:     400,
		retryWindow:  12 * time.Second,
		retryInitial: 500 * time.Millisecond,
		log:          log.WithField("module", "transcription"),
	}, nil
}

// Transcribe uploads audioPath, requests language detection and returns word
// timings converted to seconds.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read audio: %w", err)
	}
	c.log.WithField("bytes", len(data)).Info("uploading audio")

	var up uploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", data, &up); err != nil {
		return types.Transcript{}, fmt.Errorf("upload: %w", err)
	}

	body, _ := json.Marshal(map[string]any{
		"audio_url":          up.UploadURL,
		"language_detection": true,
	})
	var job transcriptResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/transcript", "application/json", body, &job); err != nil {
		return types.Transcript{}, fmt.Errorf("create transcript: %w", err)
	}

	done, err := c.poll(ctx, job)
	if err != nil {
		return types.Transcript{}, err
	}
	return toTranscript(done, c.log)
}

func (c *Client) poll(ctx context.Context, job transcriptResponse) (transcriptResponse, error) {
	for i := 0; i < c.maxPolls; i++ {
		switch job.Status {
		case "completed":
			return job, nil
		case "error":
			return transcriptResponse{}, fmt.Errorf("%w: %s", ErrFailed, job.Error)
		}
		c.log.WithFields(logrus.Fields{"transcript_id": job.ID, "status": job.Status}).Debug("polling transcription")

		select {
		case <-ctx.Done():
			return transcriptResponse{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v2/transcript/"+job.ID, "", nil, &job); err != nil {
			return transcriptResponse{}, fmt.Errorf("poll transcript: %w", err)
		}
	}
	return transcriptResponse{}, fmt.Errorf("%w: timeout waiting for transcript %s", ErrFailed, job.ID)
}

// toTranscript clamps invalid word timings: a negative start becomes 0 and an
// end before the start collapses onto it.
func toTranscript(r transcriptResponse, log *logrus.Entry) (types.Transcript, error) {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return types.Transcript{}, ErrEmptyTranscript
	}
	lang := r.LanguageCode
	if lang == "" {
		lang = "en"
	}
	out := types.Transcript{Text: text, Language: lang}
	for i, w := range r.Words {
		start, end := w.Start, w.End
		if start < 0 {
			start = 0
		}
		if end < start {
			end = start
		}
		if start != w.Start || end != w.End {
			log.WithFields(logrus.Fields{"word": w.Text, "index": i, "start_ms": w.Start, "end_ms": w.End}).Warn("clamped invalid word timing")
		}
		span, err := types.NewWordSpan(w.Text, float64(start)/1000, float64(end)/1000)
		if err != nil {
			log.WithField("word", w.Text).WithField("error", err.Error()).Warn("skipping word")
			continue
		}
		out.Words = append(out.Words, span)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, contentType string, payload []byte, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxElapsedTime = c.retryWindow

	op := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", c.apiKey)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(raw, 200))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("http %d: %s", resp.StatusCode, truncate(raw, 200)))
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %v body=%s", err, truncate(raw, 200)))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
