package prompt

import "regexp"

// Preprocessor shapes the raw cursor context before prompt assembly. If
// RemovesCursor reports true, the whole request short-circuits to an
// empty completion: the cursor sits inside content that must not be
// completed.
type Preprocessor interface {
	RemovesCursor(prefix, suffix string) bool
	Process(prefix, suffix string, class ContextClass) (newPrefix, newSuffix string)
}

var dataviewFenceRe = regexp.MustCompile(`(?s)` + "```" + `dataview(js)?.*?` + "```")

const cursorSentinel = "\x00CURSOR\x00"

// DataviewRemover deletes any fenced region whose opening fence is
// ```dataview or ```dataviewjs, and short-circuits when the cursor falls
// inside one.
type DataviewRemover struct{}

func (DataviewRemover) RemovesCursor(prefix, suffix string) bool {
	text := prefix + cursorSentinel + suffix
	for _, loc := range dataviewFenceRe.FindAllStringIndex(text, -1) {
		if loc[0] <= indexOfSentinel(text) && indexOfSentinel(text) < loc[1] {
			return true
		}
	}
	return false
}

func (DataviewRemover) Process(prefix, suffix string, class ContextClass) (string, string) {
	text := prefix + cursorSentinel + suffix
	text = dataviewFenceRe.ReplaceAllString(text, "")
	idx := indexOfSentinel(text)
	if idx < 0 {
		// The sentinel itself was removed along with a dataview fence that
		// spanned it; nothing sensible to split, return as-is.
		return prefix, suffix
	}
	return text[:idx], text[idx+len(cursorSentinel):]
}

func indexOfSentinel(text string) int {
	for i := 0; i+len(cursorSentinel) <= len(text); i++ {
		if text[i:i+len(cursorSentinel)] == cursorSentinel {
			return i
		}
	}
	return -1
}

// LengthLimiter truncates prefix to its last maxPrefix chars and suffix to
// its first maxSuffix chars. It never short-circuits.
type LengthLimiter struct {
	MaxPrefix int
	MaxSuffix int
}

func (LengthLimiter) RemovesCursor(prefix, suffix string) bool {
	return false
}

func (l LengthLimiter) Process(prefix, suffix string, class ContextClass) (string, string) {
	p := []rune(prefix)
	if len(p) > l.MaxPrefix {
		p = p[len(p)-l.MaxPrefix:]
	}
	s := []rune(suffix)
	if len(s) > l.MaxSuffix {
		s = s[:l.MaxSuffix]
	}
	return string(p), string(s)
}
