package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftcode/fimproxy/internal/config"
)

func newTestServer(t *testing.T, client fakeStreamableClient) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	predictor, err := NewPredictor(cfg, client)
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}
	return NewServer(predictor, cfg, zerolog.Nop())
}

type fakeStreamableClient = *fakeUpstream

func TestHandlePredictRoundTrip(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{text: "fox jumps "})

	body := strings.NewReader(`{"prefix":"The quick brown ","suffix":"over the lazy dog."}`)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var resp predictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Completion != "fox jumps " {
		t.Fatalf("completion: got %q, want %q", resp.Completion, "fox jumps ")
	}
}

func TestHandlePredictRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{text: "x"})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("not json"))
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{text: "x"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestHandleConfigReturnsProviderSection(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{text: "x"})

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"api_provider"`) {
		t.Fatalf("expected config snapshot to include provider section: %s", w.Body.String())
	}
}

func TestHandlePredictStreamEmitsSSE(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{text: "streamed result"})

	body := strings.NewReader(`{"prefix":"prefix ","suffix":" suffix"}`)
	req := httptest.NewRequest(http.MethodPost, "/predict/stream", body)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type: got %q, want text/event-stream", ct)
	}
	if !strings.Contains(w.Body.String(), "data: streamed result") {
		t.Fatalf("expected SSE body to contain the completion: %s", w.Body.String())
	}
}
