package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"voice-dub-go/internal/config"
	"voice-dub-go/internal/logger"
	"voice-dub-go/internal/processor"
	"voice-dub-go/internal/speech"
	"voice-dub-go/internal/synthesis"
	"voice-dub-go/internal/types"
)

const (
	maxUploadBytes = 500 << 20
	maxTextBytes   = 64 << 10
)

var errBadTimeout = errors.New("timeout_sec must be a positive integer")

type speaker interface {
	Speak(ctx context.Context, req speech.Request) (speech.Result, error)
}

type server struct {
	cfg     config.Config
	runner  processor.Runner
	speaker speaker
	log     *logger.Logger
}

func newServer(cfg config.Config, runner processor.Runner, sp speaker, log *logger.Logger) *server {
	return &server{cfg: cfg, runner: runner, speaker: sp, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/dub", s.handleDub)
	mux.HandleFunc("/tts", s.handleTTS)
	mux.Handle("/outputs/", http.StripPrefix("/outputs/", http.FileServer(http.Dir(s.cfg.Export.OutputDir))))
	return mux
}

func (s *server) handleDub(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "dub")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("media")
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("missing media upload")
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	timeoutSec, err := parseTimeout(r.FormValue("timeout_sec"), s.cfg.Server.TimeoutSec)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("invalid timeout")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	uploadPath := filepath.Join(s.cfg.Server.UploadDir, jobID+ext)
	if err := saveUpload(uploadPath, file); err != nil {
		reqLog.WithField("error", err.Error()).Error("failed to store upload")
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	defer os.Remove(uploadPath)

	job := types.DubJob{
		ID:             jobID,
		AudioPath:      uploadPath,
		TargetLanguage: r.FormValue("target_lang"),
		Speaker:        r.FormValue("speaker"),
	}
	reqLog = reqLog.WithField("job_id", jobID).WithField("filename", header.Filename).WithField("timeout_sec", timeoutSec)
	reqLog.Info("dub request received")

	res, err := processor.ProcessJob(r.Context(), s.runner, job, processor.Options{
		Timeout:   time.Duration(timeoutSec) * time.Second,
		Subtitles: s.cfg.Export.Subtitles,
		OutputDir: s.cfg.Export.OutputDir,
	}, reqLog)
	reqLog.WithField("duration_ms", res.DurationMs).Info("processor finished")

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("processor returned error")
		w.WriteHeader(http.StatusInternalServerError)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toResponse(res, s.cfg.Export.OutputDir)); err != nil {
		reqLog.WithField("error", err.Error()).Error("failed to write response")
	}
}

// parseTimeout falls back to limit when value is empty and never exceeds it,
// so a job cannot outlive the server's write timeout.
func parseTimeout(value string, limit int) (int, error) {
	if value == "" {
		return limit, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0, errBadTimeout
	}
	if limit > 0 && n > limit {
		return limit, nil
	}
	return n, nil
}

func (s *server) handleTTS(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "tts")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBytes)
	req, err := decodeSpeechRequest(r)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("bad tts request")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.speaker.Speak(r.Context(), req)
	if err != nil {
		status := speechStatus(err)
		reqLog.WithField("error", err.Error()).WithField("status", status).Warn("tts failed")
		http.Error(w, err.Error(), status)
		return
	}
	reqLog.WithField("bytes", len(res.WAV)).WithField("translated", res.Translated).Info("tts served")

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.WAV)))
	w.Header().Set("X-Translated", strconv.FormatBool(res.Translated))
	if _, err := w.Write(res.WAV); err != nil {
		reqLog.WithField("error", err.Error()).Error("failed to write audio")
	}
}

func decodeSpeechRequest(r *http.Request) (speech.Request, error) {
	var req speech.Request
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Text = r.FormValue("text")
	req.TargetLanguage = r.FormValue("target_lang")
	req.Speaker = r.FormValue("speaker")
	if v := r.FormValue("translate"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, err
		}
		req.Translate = b
	}
	return req, nil
}

func speechStatus(err error) int {
	switch {
	case errors.Is(err, speech.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrMissingCredential):
		return http.StatusServiceUnavailable
	case errors.Is(err, synthesis.ErrNonSuccess), errors.Is(err, synthesis.ErrEmptyAudio), errors.Is(err, speech.ErrTranslation):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// dubResponse rewrites artifact paths as /outputs/ URLs.
type dubResponse struct {
	processor.JobResult
	MixedAudioURL    string `json:"mixed_audio_url,omitempty"`
	VoiceURL         string `json:"voice_url,omitempty"`
	BackgroundURL    string `json:"background_url,omitempty"`
	OriginalURL      string `json:"original_url,omitempty"`
	SubtitlesURL     string `json:"subtitles_url,omitempty"`
	TranslatedSubURL string `json:"translated_subtitles_url,omitempty"`
}

func toResponse(res processor.JobResult, outputDir string) dubResponse {
	return dubResponse{
		JobResult:        res,
		MixedAudioURL:    outputURL(outputDir, res.Result.MixedAudioPath),
		VoiceURL:         outputURL(outputDir, res.Result.VoicePath),
		BackgroundURL:    outputURL(outputDir, res.Result.BackgroundPath),
		OriginalURL:      outputURL(outputDir, res.Result.OriginalPath),
		SubtitlesURL:     outputURL(outputDir, res.OriginalSRTPath),
		TranslatedSubURL: outputURL(outputDir, res.TranslatedSRTPath),
	}
}

func outputURL(outputDir, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(outputDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/outputs/" + filepath.ToSlash(rel)
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
