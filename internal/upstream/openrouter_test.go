package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftcode/fimproxy/internal/prompt"
)

func TestOpenRouterQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing or wrong auth header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	text, err := c.Query(context.Background(), Request{Messages: []prompt.ChatMessage{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("got %q, want %q", text, "hello there")
	}
}

func TestOpenRouterQueryPropagatesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "rate limited")
	}))
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := c.Query(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestOpenRouterStreamDeliversChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		chunks := []string{"Hello", " world"}
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{
					{"delta": map[string]any{"content": c}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	chunkCh, errCh := c.Stream(context.Background(), Request{Messages: []prompt.ChatMessage{{Role: "user", Content: "hi"}}})

	var got string
	for chunk := range chunkCh {
		got += chunk
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("got %q, want %q", got, "Hello world")
	}
}

func TestOpenRouterCheckConfigFlagsMissingFields(t *testing.T) {
	c := NewOpenRouterClient(OpenRouterConfig{})
	problems := c.CheckConfig()
	if len(problems) != 2 {
		t.Fatalf("got %d problems, want 2: %v", len(problems), problems)
	}
}
