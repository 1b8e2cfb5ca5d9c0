package upstream

import (
	"context"
	"errors"
	"testing"
)

// fakeClient lets tests control exactly what Stream/Query return without
// depending on any provider SDK.
type fakeClient struct {
	queryText   string
	queryErr    error
	streamChunk []string
	streamErr   error
}

func (f *fakeClient) Name() string          { return "fake" }
func (f *fakeClient) CheckConfig() []string { return nil }

func (f *fakeClient) Query(ctx context.Context, req Request) (string, error) {
	return f.queryText, f.queryErr
}

func (f *fakeClient) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string, len(f.streamChunk))
	errs := make(chan error, 1)
	for _, c := range f.streamChunk {
		chunks <- c
	}
	close(chunks)
	if f.streamErr != nil {
		errs <- f.streamErr
	}
	close(errs)
	return chunks, errs
}

func TestFallbackFallsBackWhenStreamFailsImmediately(t *testing.T) {
	inner := &fakeClient{
		streamErr: errors.New("stream unsupported"),
		queryText: "fallback result",
	}
	fb := NewFallbackClient(inner)

	chunks, errs := fb.Stream(context.Background(), Request{})

	var got string
	for c := range chunks {
		got += c
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback result" {
		t.Fatalf("got %q, want %q", got, "fallback result")
	}
}

func TestFallbackDoesNotFallBackAfterPartialDelivery(t *testing.T) {
	inner := &fakeClient{
		streamChunk: []string{"partial"},
		streamErr:   errors.New("dropped mid-stream"),
	}
	fb := NewFallbackClient(inner)

	chunks, errs := fb.Stream(context.Background(), Request{})

	var got string
	for c := range chunks {
		got += c
	}
	if got != "partial" {
		t.Fatalf("got %q, want %q", got, "partial")
	}
	if err := <-errs; err == nil {
		t.Fatalf("expected error to propagate after partial delivery")
	}
}

func TestFallbackPassesThroughCleanStream(t *testing.T) {
	inner := &fakeClient{streamChunk: []string{"a", "b", "c"}}
	fb := NewFallbackClient(inner)

	chunks, errs := fb.Stream(context.Background(), Request{})
	var got string
	for c := range chunks {
		got += c
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
}
