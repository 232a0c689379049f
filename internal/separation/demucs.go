// Package separation wraps the demucs command-line source separator.
package separation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var commandContext = exec.CommandContext

// Option configures the CLI client.
type Option func(*Demucs)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(d *Demucs) {
		if binary != "" {
			d.binary = binary
		}
	}
}

// WithModel selects the demucs model name.
func WithModel(model string) Option {
	return func(d *Demucs) {
		if model != "" {
			d.model = model
		}
	}
}

// WithTimeout bounds a single separation run.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Demucs) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// Demucs splits a track into vocals and everything else.
type Demucs struct {
	binary  string
	model   string
	timeout time.Duration
	log     *logrus.Entry
}

func NewDemucs(log *logrus.Entry, opts ...Option) *Demucs {
	d := &Demucs{
		binary:  "demucs",
		model:   "htdemucs",
		timeout: 10 * time.Minute,
		log:     log.WithField("module", "separation"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Separate runs a two-stem split and returns the vocals and no_vocals paths
// demucs writes under workDir/<model>/<input basename>/.
func (d *Demucs) Separate(ctx context.Context, audioPath, workDir string) (string, string, error) {
	if audioPath == "" {
		return "", "", errors.New("input path required")
	}
	if workDir == "" {
		return "", "", errors.New("work directory required")
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{
		"--two-stems=vocals",
		"-n", d.model,
		"-o", workDir,
		audioPath,
	}
	d.log.WithFields(logrus.Fields{"binary": d.binary, "model": d.model}).Info("running source separation")
	cmd := commandContext(ctx, d.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", "", fmt.Errorf("demucs: %w: %s", err, strings.TrimSpace(string(output)))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemDir := filepath.Join(workDir, d.model, base)
	voice := filepath.Join(stemDir, "vocals.wav")
	background := filepath.Join(stemDir, "no_vocals.wav")
	for _, p := range []string{voice, background} {
		if _, err := os.Stat(p); err != nil {
			return "", "", fmt.Errorf("demucs output missing: %w", err)
		}
	}
	return voice, background, nil
}
