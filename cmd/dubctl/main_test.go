package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/config"
	"voice-dub-go/internal/processor"
	"voice-dub-go/internal/types"
)

func mockEnv(t *testing.T) string {
	t.Helper()
	out := t.TempDir()
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("USE_MOCK_TTS", "true")
	t.Setenv("OUTPUT_DIR", out)
	t.Setenv("LOG_LEVEL", "error")
	return out
}

func writeClip(t *testing.T) string {
	t.Helper()
	samples := make([]float64, 22050)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*220*float64(i)/22050)
	}
	tr, err := audio.NewTrack(22050, samples)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteFile(path, tr); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRunCommandWithMockProviders(t *testing.T) {
	out := mockEnv(t)
	clip := writeClip(t)

	stdout, err := execute(t, "run", clip, "--json")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stdout)
	}
	var res processor.JobResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout)
	}
	if !res.Result.TTSAvailable || res.Result.MixedAudioPath == "" {
		t.Fatalf("result = %+v", res.Result)
	}
	if !strings.HasPrefix(res.Result.MixedAudioPath, out) {
		t.Fatalf("mixed written outside output dir: %s", res.Result.MixedAudioPath)
	}
	if rep, ok := res.Result.Stage("isolate"); !ok || rep.Outcome != types.OutcomeSuccess {
		t.Fatalf("isolate stage = %+v", rep)
	}
	if _, err := os.Stat(res.TranslatedSRTPath); err != nil {
		t.Fatalf("translated subtitles missing: %v", err)
	}
}

func TestRunCommandMissingCredentials(t *testing.T) {
	t.Setenv("USE_MOCK_TRANSCRIBE", "false")
	t.Setenv("ASSEMBLYAI_API_KEY", "")
	if _, err := execute(t, "run", "x.wav"); err == nil {
		t.Fatal("expected missing credential error")
	}
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-supersecret1234")
	stdout, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if strings.Contains(stdout, "supersecret") || !strings.Contains(stdout, "****1234") {
		t.Fatalf("secrets not masked:\n%s", stdout)
	}
	if !strings.Contains(stdout, "target_language") || !strings.Contains(stdout, "ckb") {
		t.Fatalf("unexpected config output:\n%s", stdout)
	}
}

func TestRenderJobs(t *testing.T) {
	got := renderJobs([]processor.JobResult{
		{Job: types.DubJob{ID: "a", AudioPath: "a.wav"}, Error: "boom"},
		{Job: types.DubJob{ID: "b", AudioPath: "b.wav"}, Result: types.PipelineResult{
			TTSAvailable: true,
			Stages:       []types.StageReport{{Stage: "isolate", Outcome: types.OutcomeDegraded}},
		}},
	})
	for _, want := range []string{"fatal", "degraded", "b.wav"} {
		if !strings.Contains(got, want) {
			t.Fatalf("table missing %q:\n%s", want, got)
		}
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" || mask("abc") != "****" || mask("abcdef") != "****cdef" {
		t.Fatal("unexpected mask output")
	}
}

func TestSpeakCommandWritesWAV(t *testing.T) {
	mockEnv(t)
	path := filepath.Join(t.TempDir(), "hello.wav")

	stdout, err := execute(t, "speak", "hello", "there", "--translate", "--lang", "ar", "-o", path)
	if err != nil {
		t.Fatalf("speak: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "[ar] hello there") || !strings.Contains(stdout, path) {
		t.Fatalf("output = %q", stdout)
	}
	tr, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if tr.Len() == 0 {
		t.Fatal("empty audio")
	}
}

func TestSpeakCommandMissingCredential(t *testing.T) {
	mockEnv(t)
	t.Setenv("USE_MOCK_TTS", "false")
	t.Setenv("KURDISH_TTS_API_KEY", "")

	_, err := execute(t, "speak", "hello", "-o", filepath.Join(t.TempDir(), "x.wav"))
	if err == nil || !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("err = %v", err)
	}
}
