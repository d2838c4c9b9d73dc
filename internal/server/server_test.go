package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vaanilabs/vaani/internal/call"
	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/health"
	"github.com/vaanilabs/vaani/internal/intent"
	recmock "github.com/vaanilabs/vaani/pkg/callrecord/mock"
	asrmock "github.com/vaanilabs/vaani/pkg/provider/asr/mock"
	llmmock "github.com/vaanilabs/vaani/pkg/provider/llm/mock"
	transfermock "github.com/vaanilabs/vaani/pkg/provider/transfer/mock"
	ttsmock "github.com/vaanilabs/vaani/pkg/provider/tts/mock"
	"github.com/vaanilabs/vaani/pkg/session"
	"github.com/vaanilabs/vaani/pkg/telephony"
)

func testServer(t *testing.T, checks ...health.Checker) (*Server, *recmock.Recorder) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &recmock.Recorder{}
	deps := call.Deps{
		ASR:      &asrmock.Provider{},
		TTS:      &ttsmock.Provider{},
		Intent:   intent.NewClassifier(&llmmock.Classifier{}, nil, log),
		Transfer: &transfermock.Client{},
		Store:    session.NewMemoryStore(),
		Recorder: rec,
		Log:      log,
	}
	return New(cfg, deps, checks...), rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	failing := health.Checker{
		Name:  "redis",
		Check: func(context.Context) error { return errors.New("connection refused") },
	}
	srv, _ := testServer(t, failing)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503 with failing checker", resp.StatusCode)
	}
}

func TestDrainingFailsReadiness(t *testing.T) {
	t.Parallel()

	passing := health.Checker{
		Name:  "redis",
		Check: func(context.Context) error { return nil },
	}
	srv, _ := testServer(t, passing)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200 before drain", resp.StatusCode)
	}

	srv.health.SetDraining(true)
	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503 while draining", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode readyz body: %v", err)
	}
	if body.Status != "draining" {
		t.Errorf("readyz body status = %q, want draining", body.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestStreamRunsCallSession(t *testing.T) {
	srv, rec := testServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	start, _ := json.Marshal(telephony.Envelope{
		Event:     telephony.EventStart,
		StreamSid: "MZtest",
		Start: &telephony.Start{
			StreamSid: "MZtest",
			CallSid:   "CAtest",
			CustomParameters: map[string]string{
				"name": "Asha", "loan_id": "LOAN1",
				"amount": "1000", "due_date": "2026-01-01",
			},
		},
	})
	if err := conn.Write(ctx, websocket.MessageText, start); err != nil {
		t.Fatalf("write start: %v", err)
	}

	// The inline snapshot resolves immediately, so the greeting plays:
	// media frames, then the completion mark.
	var sawMedia, sawMark bool
	for !sawMark {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read before mark: %v", err)
		}
		env, err := telephony.Decode(data)
		if err != nil {
			t.Fatalf("decode outbound: %v", err)
		}
		switch env.Event {
		case telephony.EventMedia:
			sawMedia = true
		case telephony.EventMark:
			sawMark = true
			if env.Mark.Name != "greeting" {
				t.Errorf("mark name = %q, want greeting", env.Mark.Name)
			}
		}
	}
	if !sawMedia {
		t.Error("no media frames before the greeting mark")
	}

	stop, _ := json.Marshal(telephony.Envelope{Event: telephony.EventStop, Stop: &telephony.Stop{}})
	if err := conn.Write(ctx, websocket.MessageText, stop); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	// The session ends and closes the socket from its side.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec.LastOutcome() != "" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session did not finalize, stages %v", rec.Stages())
}
