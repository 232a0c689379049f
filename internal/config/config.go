// Package config holds the explicit configuration passed into the dubbing
// pipeline and its providers.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const (
	DefaultTargetLanguage = "ckb"
	DefaultSpeaker        = "1_speaker"
	DefaultSegmentWords   = 10

	// Empirically tuned; keep unless re-tuned by ear.
	DefaultBaseGainDB     = -18.0
	DefaultAnalysisRate   = 22050
	DefaultFFTSize        = 2048
	DefaultHopSize        = 512
	DefaultVocalCutoffHz  = 4000.0
	DefaultLowGainStart   = 0.3
	DefaultLowGainEnd     = 0.7
	DefaultHighGain       = 0.85
	DefaultPeakCeiling    = 0.95
	DefaultTranslateLimit = 4
)

var ErrMissingCredential = errors.New("missing provider credential")

// Isolation configures the spectral voice isolator.
type Isolation struct {
	Enabled       bool    `toml:"enabled"`
	AnalysisRate  int     `toml:"analysis_rate"`
	FFTSize       int     `toml:"fft_size"`
	HopSize       int     `toml:"hop_size"`
	VocalCutoffHz float64 `toml:"vocal_cutoff_hz"`
	LowGainStart  float64 `toml:"low_gain_start"`
	LowGainEnd    float64 `toml:"low_gain_end"`
	HighGain      float64 `toml:"high_gain"`
	PeakCeiling   float64 `toml:"peak_ceiling"`
}

// Provider is the shared shape of every external collaborator.
type Provider struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	TimeoutSec int    `toml:"timeout_sec"`
	Mock       bool   `toml:"mock"`
}

// Separation configures the optional external source-separation CLI.
type Separation struct {
	Enabled    bool   `toml:"enabled"`
	Binary     string `toml:"binary"`
	Model      string `toml:"model"`
	TimeoutSec int    `toml:"timeout_sec"`
}

type Export struct {
	OutputDir string `toml:"output_dir"`
	Stems     bool   `toml:"stems"`
	Subtitles bool   `toml:"subtitles"`
}

type Server struct {
	Addr       string `toml:"addr"`
	UploadDir  string `toml:"upload_dir"`
	TimeoutSec int    `toml:"timeout_sec"`
}

type Config struct {
	TargetLanguage       string  `toml:"target_language"`
	SynthesisLanguage    string  `toml:"synthesis_language"`
	Speaker              string  `toml:"speaker"`
	SegmentWords         int     `toml:"segment_words"`
	BaseGainDB           float64 `toml:"base_gain_db"`
	TranslateConcurrency int     `toml:"translate_concurrency"`

	Isolation     Isolation  `toml:"isolation"`
	Separation    Separation `toml:"separation"`
	Transcription Provider   `toml:"transcription"`
	Translation   Provider   `toml:"translation"`
	Synthesis     Provider   `toml:"synthesis"`
	Export        Export     `toml:"export"`
	Server        Server     `toml:"server"`
}

// Default returns a configuration with every constant at its documented value.
func Default() Config {
	return Config{
		TargetLanguage:       DefaultTargetLanguage,
		SynthesisLanguage:    "sorani",
		Speaker:              DefaultSpeaker,
		SegmentWords:         DefaultSegmentWords,
		BaseGainDB:           DefaultBaseGainDB,
		TranslateConcurrency: DefaultTranslateLimit,
		Isolation: Isolation{
			Enabled:       true,
			AnalysisRate:  DefaultAnalysisRate,
			FFTSize:       DefaultFFTSize,
			HopSize:       DefaultHopSize,
			VocalCutoffHz: DefaultVocalCutoffHz,
			LowGainStart:  DefaultLowGainStart,
			LowGainEnd:    DefaultLowGainEnd,
			HighGain:      DefaultHighGain,
			PeakCeiling:   DefaultPeakCeiling,
		},
		Separation:    Separation{Binary: "demucs", Model: "htdemucs", TimeoutSec: 600},
		Transcription: Provider{BaseURL: "https://api.assemblyai.com", TimeoutSec: 30},
		Translation:   Provider{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", TimeoutSec: 30},
		Synthesis:     Provider{BaseURL: "https://www.kurdishtts.com/api/tts-proxy", TimeoutSec: 60},
		Export:        Export{OutputDir: "outputs", Stems: true, Subtitles: true},
		Server:        Server{Addr: ":8080", UploadDir: "uploads", TimeoutSec: 300},
	}
}

// Load starts from Default, decodes the TOML file at path when it exists and
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			decoder := toml.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg, os.Getenv)
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setString(&cfg.TargetLanguage, getenv("TARGET_LANGUAGE"))
	setString(&cfg.Speaker, getenv("TTS_SPEAKER"))
	setString(&cfg.Export.OutputDir, getenv("OUTPUT_DIR"))
	setString(&cfg.Server.UploadDir, getenv("UPLOAD_DIR"))
	if port := getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	setInt(&cfg.SegmentWords, getenv("SEGMENT_WORDS"))
	setFloat(&cfg.BaseGainDB, getenv("BASE_GAIN_DB"))

	setString(&cfg.Transcription.BaseURL, getenv("TRANSCRIBE_URL"))
	setString(&cfg.Transcription.APIKey, getenv("ASSEMBLYAI_API_KEY"))
	setString(&cfg.Translation.BaseURL, getenv("LLM_GATEWAY_URL"))
	setString(&cfg.Translation.APIKey, getenv("LLM_API_KEY"))
	setString(&cfg.Translation.Model, getenv("LLM_MODEL"))
	setString(&cfg.Synthesis.BaseURL, getenv("TTS_URL"))
	setString(&cfg.Synthesis.APIKey, getenv("KURDISH_TTS_API_KEY"))

	setBool(&cfg.Transcription.Mock, getenv("USE_MOCK_TRANSCRIBE"))
	setBool(&cfg.Translation.Mock, getenv("USE_MOCK_LLM"))
	setBool(&cfg.Synthesis.Mock, getenv("USE_MOCK_TTS"))
	setBool(&cfg.Isolation.Enabled, getenv("ISOLATION_ENABLED"))
	setBool(&cfg.Separation.Enabled, getenv("SEPARATION_ENABLED"))
	setString(&cfg.Separation.Binary, getenv("DEMUCS_BIN"))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, v string) {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		*dst = f
	}
}

func setBool(dst *bool, v string) {
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		*dst = b
	}
}

// Validate checks invariants the pipeline relies on. Transcription and
// translation credentials are mandatory unless mocked; synthesis is optional and
// a missing key only disables it at run time.
func (c Config) Validate() error {
	if _, err := language.Parse(c.TargetLanguage); err != nil {
		return fmt.Errorf("target_language %q: %w", c.TargetLanguage, err)
	}
	if c.SegmentWords < 1 {
		return fmt.Errorf("segment_words must be >= 1, got %d", c.SegmentWords)
	}
	if c.TranslateConcurrency < 1 {
		return fmt.Errorf("translate_concurrency must be >= 1, got %d", c.TranslateConcurrency)
	}
	if err := c.Isolation.validate(); err != nil {
		return fmt.Errorf("isolation: %w", err)
	}
	for name, p := range map[string]Provider{
		"transcription": c.Transcription,
		"translation":   c.Translation,
	} {
		if !p.Mock && p.APIKey == "" {
			return fmt.Errorf("%s: %w", name, ErrMissingCredential)
		}
	}
	return nil
}

func (i Isolation) validate() error {
	if i.AnalysisRate <= 0 {
		return fmt.Errorf("analysis_rate must be > 0, got %d", i.AnalysisRate)
	}
	if i.FFTSize < 2 || i.FFTSize&(i.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two, got %d", i.FFTSize)
	}
	if i.HopSize <= 0 || i.HopSize > i.FFTSize {
		return fmt.Errorf("hop_size must be in (0, %d], got %d", i.FFTSize, i.HopSize)
	}
	if i.VocalCutoffHz <= 0 {
		return fmt.Errorf("vocal_cutoff_hz must be > 0, got %g", i.VocalCutoffHz)
	}
	for name, g := range map[string]float64{
		"low_gain_start": i.LowGainStart,
		"low_gain_end":   i.LowGainEnd,
		"high_gain":      i.HighGain,
	} {
		if g < 0 || g > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", name, g)
		}
	}
	if i.PeakCeiling <= 0 || i.PeakCeiling > 1 {
		return fmt.Errorf("peak_ceiling must be within (0,1], got %g", i.PeakCeiling)
	}
	return nil
}
