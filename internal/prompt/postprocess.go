package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Postprocessor shapes the raw completion text returned by the upstream
// model before it is handed back to the caller.
type Postprocessor interface {
	Process(prefix, suffix, completion string, class ContextClass) (string, error)
}

// ChainOfThoughtStripper removes any portion of the completion matched by
// a configured reasoning-scaffold regex, passing the text through
// unchanged when the regex does not match.
type ChainOfThoughtStripper struct {
	Regex *regexp.Regexp
}

func (c ChainOfThoughtStripper) Process(prefix, suffix, completion string, class ContextClass) (string, error) {
	if c.Regex == nil || !c.Regex.MatchString(completion) {
		return completion, nil
	}
	return c.Regex.ReplaceAllString(completion, ""), nil
}

var mathIndicatorRe = regexp.MustCompile(`\n?\$\$\n?`)

// RemoveMathIndicators strips $$ delimiters and stray $ when the
// surrounding context is MathBlock.
type RemoveMathIndicators struct{}

func (RemoveMathIndicators) Process(prefix, suffix, completion string, class ContextClass) (string, error) {
	if class != ClassMathBlock {
		return completion, nil
	}
	completion = mathIndicatorRe.ReplaceAllString(completion, "")
	completion = strings.ReplaceAll(completion, "$", "")
	return completion, nil
}

var (
	codeOpenFenceRe  = regexp.MustCompile("```[a-zA-Z]+[ \t]*\n?")
	codeCloseFenceRe = regexp.MustCompile("```[ \t]*\n?")
)

// RemoveCodeIndicators strips the opening fence (with optional language
// tag), closing fence, and stray backticks when the context is CodeBlock.
type RemoveCodeIndicators struct{}

func (RemoveCodeIndicators) Process(prefix, suffix, completion string, class ContextClass) (string, error) {
	if class != ClassCodeBlock {
		return completion, nil
	}
	completion = codeOpenFenceRe.ReplaceAllString(completion, "")
	completion = codeCloseFenceRe.ReplaceAllString(completion, "")
	completion = strings.ReplaceAll(completion, "`", "")
	return completion, nil
}

// RemoveOverlap trims text the model echoed back that already appears in
// the surrounding prefix/suffix, via four independent sub-steps: word
// overlap with the prefix, word overlap with the suffix, then
// character-by-character peeling against both.
type RemoveOverlap struct{}

func (RemoveOverlap) Process(prefix, suffix, completion string, class ContextClass) (string, error) {
	completion = removeWordOverlapPrefix(prefix, completion)
	completion = removeWordOverlapSuffix(completion, suffix)
	completion = removeCharOverlapPrefix(prefix, completion)
	completion = removeCharOverlapSuffix(completion, suffix)
	return completion, nil
}

// wordBoundaryStarts returns every index in text that begins a "word": 0,
// or any position preceded by whitespace, in ascending order, so the
// caller can test the longest candidate tail first.
func wordBoundaryStarts(text string) []int {
	var locs []int
	runes := []rune(text)
	if len(runes) > 0 && !unicode.IsSpace(runes[0]) {
		locs = append(locs, 0)
	}
	for i := 1; i < len(runes); i++ {
		if unicode.IsSpace(runes[i-1]) && !unicode.IsSpace(runes[i]) {
			locs = append(locs, i)
		}
	}
	return locs
}

func removeWordOverlapPrefix(prefix, completion string) string {
	rightTrimmed := strings.TrimLeft(completion, " \t\n\r\v\f")
	starts := wordBoundaryStarts(prefix)
	prefixRunes := []rune(prefix)
	for i := 0; i < len(starts); i++ {
		idx := starts[i]
		leftSub := string(prefixRunes[idx:])
		if strings.HasPrefix(rightTrimmed, leftSub) {
			return strings.Replace(rightTrimmed, leftSub, "", 1)
		}
	}
	return completion
}

func removeWordOverlapSuffix(completion, suffix string) string {
	suffixTrimmed := strings.TrimLeft(suffix, " \t\n\r\v\f")
	starts := wordBoundaryStarts(completion)
	completionRunes := []rune(completion)
	for i := 0; i < len(starts); i++ {
		idx := starts[i]
		compSub := string(completionRunes[idx:])
		if strings.HasPrefix(suffixTrimmed, compSub) {
			return string(completionRunes[:idx])
		}
	}
	return completion
}

func removeCharOverlapPrefix(prefix, completion string) string {
	p := []rune(prefix)
	c := []rune(completion)
	i := len(p) - 1
	for len(c) > 0 && i >= 0 && c[0] == p[i] {
		c = c[1:]
		i--
	}
	return string(c)
}

func removeCharOverlapSuffix(completion, suffix string) string {
	c := []rune(completion)
	s := []rune(suffix)
	i := 0
	for len(c) > 0 && i < len(s) && c[len(c)-1] == s[i] {
		c = c[:len(c)-1]
		i++
	}
	return string(c)
}

var trailingPunctuation = map[rune]bool{
	'.': true, ',': true, ';': true, ':': true, '!': true, '?': true,
	')': true, ']': true, '}': true, '»': true, '”': true,
}

// whitespaceSensitiveClasses are the ContextClass values where
// RemoveWhitespace applies; code/blockquote contexts are left untouched
// since their whitespace carries structural meaning.
var whitespaceSensitiveClasses = map[ContextClass]bool{
	ClassText:          true,
	ClassHeading:       true,
	ClassMathBlock:     true,
	ClassTaskList:      true,
	ClassNumberedList:  true,
	ClassUnorderedList: true,
}

// RemoveWhitespace trims a leading space the user already typed, or a
// trailing space before punctuation the suffix already supplies.
type RemoveWhitespace struct{}

func (RemoveWhitespace) Process(prefix, suffix, completion string, class ContextClass) (string, error) {
	if !whitespaceSensitiveClasses[class] {
		return completion, nil
	}

	if strings.HasSuffix(prefix, " ") || strings.HasSuffix(prefix, "\t") || strings.HasSuffix(prefix, "\n") || strings.HasPrefix(suffix, "\n") {
		completion = strings.TrimLeft(completion, " \t\n\r\v\f")
	}

	if suffix != "" {
		r := []rune(suffix)[0]
		if trailingPunctuation[r] {
			completion = strings.TrimRight(completion, " \t\n\r\v\f")
		}
	}

	return completion, nil
}

// ErrEmptyCompletion and ErrMaskInCompletion are the two Guardrails
// failure modes; both collapse to an empty completion at the HTTP layer.
var (
	ErrEmptyCompletion  = fmt.Errorf("postprocess: completion is empty after stripping")
	ErrMaskInCompletion = fmt.Errorf("postprocess: completion still contains the mask sentinel")
)

// Guardrails is the terminal postprocessing step: it rejects completions
// that are empty or that still leak the mask sentinel.
type Guardrails struct{}

func (Guardrails) Process(prefix, suffix, completion string, class ContextClass) (string, error) {
	if strings.TrimSpace(completion) == "" {
		return "", ErrEmptyCompletion
	}
	if strings.Contains(completion, MaskSentinel) {
		return "", ErrMaskInCompletion
	}
	return completion, nil
}
