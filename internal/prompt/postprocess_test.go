package prompt

import (
	"regexp"
	"testing"
)

func TestRemoveOverlapWordOverlapPrefix(t *testing.T) {
	ro := RemoveOverlap{}
	got, err := ro.Process("The quick brown ", "", "brown fox jumps", ClassText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fox jumps" {
		t.Fatalf("got %q, want %q", got, "fox jumps")
	}
}

func TestRemoveOverlapCharOverlapPrefix(t *testing.T) {
	ro := RemoveOverlap{}
	got, err := ro.Process("- item one\n- ", "", "- item two", ClassUnorderedList)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "item two" {
		t.Fatalf("got %q, want %q", got, "item two")
	}
}

func TestRemoveOverlapIdempotent(t *testing.T) {
	ro := RemoveOverlap{}
	prefix, suffix := "The quick brown ", " jumps over"
	completion := "brown fox"

	once, _ := ro.Process(prefix, suffix, completion, ClassText)
	twice, _ := ro.Process(prefix, suffix, once, ClassText)
	if once != twice {
		t.Fatalf("expected idempotence, got %q then %q", once, twice)
	}
}

func TestRemoveWhitespaceIdempotent(t *testing.T) {
	rw := RemoveWhitespace{}
	prefix, suffix := "hello ", ". world"
	completion := "  there  "

	once, _ := rw.Process(prefix, suffix, completion, ClassText)
	twice, _ := rw.Process(prefix, suffix, once, ClassText)
	if once != twice {
		t.Fatalf("expected idempotence, got %q then %q", once, twice)
	}
}

func TestRemoveWhitespaceLstripsOnTrailingSpace(t *testing.T) {
	rw := RemoveWhitespace{}
	got, _ := rw.Process("hello ", "world", "  there", ClassText)
	if got != "there" {
		t.Fatalf("got %q, want %q", got, "there")
	}
}

func TestRemoveWhitespaceRstripsBeforePunctuation(t *testing.T) {
	rw := RemoveWhitespace{}
	got, _ := rw.Process("hello", ". world", "there  ", ClassText)
	if got != "there" {
		t.Fatalf("got %q, want %q", got, "there")
	}
}

func TestRemoveMathIndicatorsOnlyAppliesToMathBlock(t *testing.T) {
	rm := RemoveMathIndicators{}
	got, _ := rm.Process("", "", "$$x = 1$$", ClassMathBlock)
	if got != "x = 1" {
		t.Fatalf("got %q, want %q", got, "x = 1")
	}

	unchanged, _ := rm.Process("", "", "$$x = 1$$", ClassText)
	if unchanged != "$$x = 1$$" {
		t.Fatalf("expected no-op outside MathBlock, got %q", unchanged)
	}
}

func TestRemoveCodeIndicatorsFences(t *testing.T) {
	rc := RemoveCodeIndicators{}
	got, _ := rc.Process("```python\ndef f():\n    ", "\n```", "```python\n    return 1\n```", ClassCodeBlock)
	if got != "    return 1\n" {
		t.Fatalf("got %q, want %q", got, "    return 1\n")
	}
}

func TestChainOfThoughtStripperDefaultRegex(t *testing.T) {
	re := regexp.MustCompile(DefaultChainOfThoughtRegex)
	cot := ChainOfThoughtStripper{Regex: re}
	got, err := cot.Process("", "", "<think>planning</think><final_answer>hi</final_answer>", ClassText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestGuardrailsRejectsEmpty(t *testing.T) {
	g := Guardrails{}
	if _, err := g.Process("", "", "   ", ClassText); err != ErrEmptyCompletion {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestGuardrailsRejectsMaskSentinel(t *testing.T) {
	g := Guardrails{}
	if _, err := g.Process("", "", "some <mask/> text", ClassText); err != ErrMaskInCompletion {
		t.Fatalf("expected ErrMaskInCompletion, got %v", err)
	}
}

func TestGuardrailsPassesClean(t *testing.T) {
	g := Guardrails{}
	got, err := g.Process("", "", "clean text", ClassText)
	if err != nil || got != "clean text" {
		t.Fatalf("got (%q, %v), want (%q, nil)", got, err, "clean text")
	}
}
