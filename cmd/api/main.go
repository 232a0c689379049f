package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voice-dub-go/internal/config"
	"voice-dub-go/internal/logger"
	"voice-dub-go/internal/pipeline"
	"voice-dub-go/internal/speech"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "voice-dub-go").Info("starting service")

	cfgPath := os.Getenv("DUB_CONFIG")
	if cfgPath == "" {
		cfgPath = "dub.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	deps, err := pipeline.BuildDeps(cfg, log.Entry)
	if err != nil {
		log.WithError(err).Fatal("failed to build providers")
	}
	orch, err := pipeline.New(cfg, deps, log.Entry)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	tts := speech.New(deps.Translator, deps.Synthesizer, cfg.TargetLanguage, cfg.Speaker, log.Entry)
	for _, dir := range []string{cfg.Server.UploadDir, cfg.Export.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).Fatal("failed to create directory")
		}
	}
	log.WithField("target_lang", cfg.TargetLanguage).WithField("isolation", cfg.Isolation.Enabled).Info("pipeline ready")

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newServer(cfg, orch, tts, log).routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSec+30) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
}
