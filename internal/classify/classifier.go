// Package classify derives the markdown ContextClass surrounding a cursor
// by inserting a unique sentinel token at the caret and testing a fixed
// sequence of regular expressions over the merged text.
package classify

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/driftcode/fimproxy/internal/prompt"
)

// sentinel is generated once per process so that no legitimate document
// content can collide with it.
var sentinel = generateSentinel()

func generateSentinel() string {
	buf := make([]byte, 8) // 16 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "deadbeefcafef00d"
	}
	return hex.EncodeToString(buf)
}

var (
	sentinelEsc  = regexp.QuoteMeta(sentinel)
	headingRe    = regexp.MustCompile(`(?m)^#+\s.*` + sentinelEsc + `.*$`)
	blockquoteRe = regexp.MustCompile(`(?m)^\s*>.*` + sentinelEsc + `.*$`)
	taskListRe   = regexp.MustCompile(`(?m)^\s*(-|[0-9]+\.) +\[.\]\s.*` + sentinelEsc + `.*$`)
	numberedRe   = regexp.MustCompile(`(?m)^\s*\d+\.\s.*` + sentinelEsc + `.*$`)
	unorderedRe  = regexp.MustCompile(`(?m)^\s*(-|\*)\s.*` + sentinelEsc + `.*$`)

	mathBlockRe       = regexp.MustCompile(`(?s)\$\$.*?\$\$`)
	inlineMathBlockRe = regexp.MustCompile(`(?s)\$.*?\$`)
	codeBlockRe       = regexp.MustCompile("(?s)```.*?```")
	inlineCodeBlockRe = regexp.MustCompile("`.*`")
)

// Classify returns the ContextClass for the cursor sitting between prefix
// and suffix, following the fixed priority order: Heading, BlockQuotes,
// TaskList, MathBlock, CodeBlock, NumberedList, UnorderedList, Text.
func Classify(prefix, suffix string) prompt.ContextClass {
	merged := prefix + sentinel + suffix

	switch {
	case headingRe.MatchString(merged):
		return prompt.ClassHeading
	case blockquoteRe.MatchString(merged):
		return prompt.ClassBlockQuotes
	case taskListRe.MatchString(merged):
		return prompt.ClassTaskList
	case cursorInsideMatch(merged, mathBlockRe) || cursorInsideMatch(merged, inlineMathBlockRe):
		return prompt.ClassMathBlock
	case cursorInsideMatch(merged, codeBlockRe) || cursorInsideMatch(merged, inlineCodeBlockRe):
		return prompt.ClassCodeBlock
	case numberedRe.MatchString(merged):
		return prompt.ClassNumberedList
	case unorderedRe.MatchString(merged):
		return prompt.ClassUnorderedList
	default:
		return prompt.ClassText
	}
}

// cursorInsideMatch reports whether the sentinel falls within any match of
// re against merged.
func cursorInsideMatch(merged string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(merged, -1) {
		if strings.Contains(merged[loc[0]:loc[1]], sentinel) {
			return true
		}
	}
	return false
}
