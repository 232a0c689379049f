package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"voice-dub-go/internal/config"
)

var ErrEmptyTranslation = errors.New("translation returned no text")

// Translator translates text into the language named by a BCP 47 tag.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint with a
// translator system prompt.
type Client struct {
	endpoint     string
	apiKey       string
	model        string
	http         *http.Client
	retryWindow  time.Duration
	retryInitial time.Duration
	log          *logrus.Entry
}

func NewClient(cfg config.Provider, log *logrus.Entry) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("translation: %w", config.ErrMissingCredential)
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		endpoint:     strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:       cfg.APIKey,
		model:        model,
		http:         &http.Client{Timeout: timeout},
		retryWindow:  20 * time.Second,
		retryInitial: 500 * time.Millisecond,
		log:          log.WithField("module", "translation"),
	}, nil
}

// SystemPrompt builds the translator instruction for targetLang.
func SystemPrompt(targetLang string) string {
	return fmt.Sprintf("You are a professional translator. Translate the following text to %s. "+
		"Provide only the translation without any additional text.", LanguageName(targetLang))
}

// LanguageName renders a tag such as "ckb" as "Central Kurdish (ckb)". Unknown
// tags are returned verbatim.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	name := display.English.Tags().Name(t)
	if name == "" {
		return tag
	}
	return fmt.Sprintf("%s (%s)", name, tag)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	data, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(targetLang)},
			{Role: "user", Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var out string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("llm server error %d: %s", resp.StatusCode, truncate(body, 200))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("llm http %d: %s", resp.StatusCode, truncate(body, 200)))
		}
		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("unexpected llm response: %s", truncate(body, 200)))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected llm response: no choices"))
		}
		out = strings.TrimSpace(parsed.Choices[0].Message.Content)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxElapsedTime = c.retryWindow
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if out == "" {
		return "", ErrEmptyTranslation
	}
	c.log.WithFields(logrus.Fields{"chars_in": len(text), "chars_out": len(out), "target": targetLang}).Debug("translated")
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
