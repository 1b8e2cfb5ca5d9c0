package suggestcache

import (
	"context"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c, err := New(10, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("fp1", "hello world")

	got, ok := c.Get("fp1")
	if !ok || got != "hello world" {
		t.Fatalf("Get(fp1) = (%q, %v), want (%q, true)", got, ok, "hello world")
	}
}

func TestEmptyCompletionNotStored(t *testing.T) {
	c, err := New(10, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("fp1", "")

	if _, ok := c.Get("fp1"); ok {
		t.Fatalf("expected no entry for empty completion")
	}
}

func TestEntryExpires(t *testing.T) {
	c, err := New(10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("fp1", "value")

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("fp1"); ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestPurgerRemovesExpiredEntries(t *testing.T) {
	c, err := New(10, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Set("fp1", "value")

	ctx, cancel := context.WithCancel(context.Background())
	done := c.StartPurger(ctx, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if c.Len() != 0 {
		t.Fatalf("expected purger to evict expired entry, Len() = %d", c.Len())
	}
}
