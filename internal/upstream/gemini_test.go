package upstream

import (
	"testing"

	"github.com/driftcode/fimproxy/internal/prompt"
)

func renderedFIMMessage(suffix string) string {
	return "Insert text at <mask/> so the final text flows from <prefix/> to <suffix/>.\n" +
		"<prefix/>\nThe quick brown \n</prefix/>\n<mask/>\n<suffix/>\n" + suffix + "\n</suffix/>\n" +
		"Return ONLY the insertion."
}

func TestExtractFIMSuffixMarkerTemplate(t *testing.T) {
	got, ok := extractFIMSuffix(renderedFIMMessage("over the lazy dog."))
	if !ok {
		t.Fatal("expected marker template to be recognized as FIM")
	}
	if got != "over the lazy dog." {
		t.Fatalf("got suffix %q, want %q", got, "over the lazy dog.")
	}
}

func TestExtractFIMSuffixMaskFallback(t *testing.T) {
	got, ok := extractFIMSuffix("before<mask/>after")
	if !ok {
		t.Fatal("expected bare <mask/> to be recognized as FIM")
	}
	if got != "after" {
		t.Fatalf("got suffix %q, want %q", got, "after")
	}
}

func TestExtractFIMSuffixNonFIMPrompt(t *testing.T) {
	if _, ok := extractFIMSuffix("just a regular chat message"); ok {
		t.Fatal("expected a non-FIM message to report ok=false")
	}
}

func TestGeminiTargetTokensEmptySuffixUsesHigherFloor(t *testing.T) {
	if got := geminiTargetTokens("", 128); got != 64 {
		t.Fatalf("got %d, want floor of 64 for empty suffix", got)
	}
}

func TestGeminiTargetTokensShortSuffixUsesLowerFloor(t *testing.T) {
	if got := geminiTargetTokens("hi", 128); got != 48 {
		t.Fatalf("got %d, want floor of 48 for a short suffix", got)
	}
}

func TestGeminiTargetTokensScalesWithSuffixLength(t *testing.T) {
	suffix := make([]byte, 100)
	for i := range suffix {
		suffix[i] = 'x'
	}
	want := 100/4 + 24
	if got := geminiTargetTokens(string(suffix), 128); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestGeminiTargetTokensRespectsBaseCap(t *testing.T) {
	suffix := make([]byte, 200)
	for i := range suffix {
		suffix[i] = 'x'
	}
	if got := geminiTargetTokens(string(suffix), 50); got != 50 {
		t.Fatalf("got %d, want base cap of 50", got)
	}
}

func TestGeminiStopSequencesEmptySuffix(t *testing.T) {
	if got := geminiStopSequences(""); got != nil {
		t.Fatalf("got %v, want nil for empty suffix", got)
	}
}

func TestGeminiStopSequencesIncludesHeadsAndBoundaries(t *testing.T) {
	got := geminiStopSequences("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	want := []string{"ABCDEFGHIJKLMNOP", "ABCDEFGH", "\n\n", "\n- ", "\n1. "}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stop[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildConfigCapsFIMMaxOutputTokensAndTemperature(t *testing.T) {
	c := &GeminiClient{}
	req := Request{
		Messages: []prompt.ChatMessage{
			{Role: "user", Content: renderedFIMMessage("hi")},
		},
		Options: prompt.ModelOptions{Temperature: 1.0, MaxTokens: 128},
	}

	cfg := c.buildConfig(req, "")

	if cfg.MaxOutputTokens != 48 {
		t.Fatalf("got MaxOutputTokens %d, want 48", cfg.MaxOutputTokens)
	}
	if cfg.Temperature == nil || *cfg.Temperature != geminiMaxTemperature {
		t.Fatalf("got Temperature %v, want %v", cfg.Temperature, geminiMaxTemperature)
	}
	if len(cfg.StopSequences) == 0 {
		t.Fatal("expected stop sequences for a FIM prompt with a non-empty suffix")
	}
}

func TestBuildConfigNonFIMUsesFlatCap(t *testing.T) {
	c := &GeminiClient{}
	req := Request{
		Messages: []prompt.ChatMessage{
			{Role: "user", Content: "tell me a joke"},
		},
		Options: prompt.ModelOptions{MaxTokens: 500},
	}

	cfg := c.buildConfig(req, "")

	if cfg.MaxOutputTokens != geminiMaxOutputCap {
		t.Fatalf("got MaxOutputTokens %d, want flat cap %d", cfg.MaxOutputTokens, geminiMaxOutputCap)
	}
	if len(cfg.StopSequences) != 0 {
		t.Fatalf("expected no stop sequences outside a FIM prompt, got %v", cfg.StopSequences)
	}
}
