package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"voice-dub-go/internal/audio"
	"voice-dub-go/internal/config"
	"voice-dub-go/internal/logger"
)

func newTestClient(url, key string) *Client {
	c := NewClient(config.Provider{BaseURL: url, APIKey: key, TimeoutSec: 5}, "sorani", logger.Nop().Entry)
	c.retryInitial = time.Millisecond
	c.retryWindow = 500 * time.Millisecond
	return c
}

func TestSynthesizeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "key" {
			t.Errorf("x-api-key = %q", got)
		}
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Text != "slaw" || req.Language != "sorani" || req.SpeakerKey != "2_speaker" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte("RIFF....WAVEdata"))
	}))
	defer ts.Close()

	got, err := newTestClient(ts.URL, "key").Synthesize(context.Background(), "slaw", "2_speaker")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got) != "RIFF....WAVEdata" {
		t.Errorf("audio = %q", got)
	}
}

func TestSynthesizeNonSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL, "key").Synthesize(context.Background(), "x", "1_speaker")
	if !errors.Is(err, ErrNonSuccess) {
		t.Fatalf("expected ErrNonSuccess, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusForbidden {
		t.Fatalf("expected StatusError 403, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx retried: %d calls", calls)
	}
}

func TestSynthesizeMissingKey(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", "").Synthesize(context.Background(), "x", "1_speaker")
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestMockProducesDecodableWAV(t *testing.T) {
	data, err := Mock{SampleRate: 16000}.Synthesize(context.Background(), "abcde", "1_speaker")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	tr, err := audio.DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if tr.SampleRate != 16000 || tr.Len() != 5*16000*60/1000 {
		t.Fatalf("mock track rate=%d len=%d", tr.SampleRate, tr.Len())
	}
}
