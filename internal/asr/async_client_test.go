package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dublab/internal/config"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, submitURL, queryURL string, maxAttempts int) *AsyncClient {
	t.Helper()
	return NewAsyncClient(config.AsyncASRConfig{
		SubmitURL:       submitURL,
		QueryURL:        queryURL,
		AppKey:          "app",
		AccessKey:       "key",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: maxAttempts,
	}, zap.NewNop())
}

func TestTranscribeMapsUtteranceWords(t *testing.T) {
	submit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-App-Key"); got != "app" {
			t.Errorf("unexpected app key header: %q", got)
		}
		if r.Header.Get("X-Api-Request-Id") == "" {
			t.Error("missing request id header")
		}
		w.Header().Set("X-Api-Status-Code", "20000000")
	}))
	defer submit.Close()

	query := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Api-Status-Code", "20000000")
		w.Write([]byte(`{
			"audio_info": {"duration": 2500},
			"result": {
				"text": "hello world ",
				"utterances": [{
					"text": "hello world",
					"start_time": 0,
					"end_time": 2500,
					"words": [
						{"text": "hello", "start_time": 0, "end_time": 1200},
						{"text": "world", "start_time": 1300, "end_time": 2500}
					]
				}]
			}
		}`))
	}))
	defer query.Close()

	client := newTestClient(t, submit.URL, query.URL, 5)
	transcript, err := client.Transcribe(context.Background(), "http://example.com/a.wav", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript.FullText != "hello world" {
		t.Errorf("unexpected full text: %q", transcript.FullText)
	}
	if transcript.DurationSeconds != 2.5 {
		t.Errorf("unexpected duration: %v", transcript.DurationSeconds)
	}
	if len(transcript.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(transcript.Words))
	}
	if transcript.Words[1].Text != "world" || transcript.Words[1].StartSeconds != 1.3 || transcript.Words[1].EndSeconds != 2.5 {
		t.Errorf("unexpected second word: %+v", transcript.Words[1])
	}
}

func TestTranscribePollCeilingExhausted(t *testing.T) {
	submit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Api-Status-Code", "20000000")
	}))
	defer submit.Close()

	var polls atomic.Int64
	query := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Header().Set("X-Api-Status-Code", "20000001")
	}))
	defer query.Close()

	client := newTestClient(t, submit.URL, query.URL, 3)
	_, err := client.Transcribe(context.Background(), "http://example.com/a.wav", "")
	if err == nil {
		t.Fatal("expected error after exhausting poll attempts")
	}
	if !strings.Contains(err.Error(), "polling exhausted") {
		t.Errorf("unexpected error: %v", err)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("expected 3 poll attempts, got %d", got)
	}
}

func TestTranscribeSilentAudio(t *testing.T) {
	submit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Api-Status-Code", "20000000")
	}))
	defer submit.Close()

	query := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Api-Status-Code", "20000003")
	}))
	defer query.Close()

	client := newTestClient(t, submit.URL, query.URL, 5)
	transcript, err := client.Transcribe(context.Background(), "http://example.com/silent.wav", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript.FullText != "" || len(transcript.Words) != 0 {
		t.Errorf("expected empty transcript for silence, got %+v", transcript)
	}
}

func TestTranscribeSubmitRejected(t *testing.T) {
	submit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Api-Status-Code", "45000001")
		w.Write([]byte("invalid audio url"))
	}))
	defer submit.Close()

	client := newTestClient(t, submit.URL, "http://unused", 5)
	_, err := client.Transcribe(context.Background(), "http://example.com/a.wav", "")
	if err == nil {
		t.Fatal("expected submit error")
	}
	if !strings.Contains(err.Error(), "submit failed") {
		t.Errorf("unexpected error: %v", err)
	}
}
