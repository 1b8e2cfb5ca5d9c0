package stream

import (
	"strings"
	"time"
)

// boundaryChars is the set of trailing characters (beyond plain
// whitespace) that make a buffer eligible for a boundary-gated flush.
const boundaryChars = ".,;:!?)]}\"'"

// Config holds the flush thresholds for an Emitter.
type Config struct {
	MinCharsBeforeEmit int
	EmitOnBoundary     bool
	ThrottleInterval   time.Duration
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		MinCharsBeforeEmit: 8,
		EmitOnBoundary:     true,
		ThrottleInterval:   40 * time.Millisecond,
	}
}

// Emitter buffers upstream text chunks and decides when the accumulated
// buffer should be flushed to the client: once it has reached the minimum
// length, (optionally) ends on a boundary character, and enough time has
// passed since the previous flush.
type Emitter struct {
	cfg      Config
	buf      strings.Builder
	lastEmit time.Time
	started  bool
}

// NewEmitter constructs an Emitter with cfg.
func NewEmitter(cfg Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Push appends chunk to the buffer and returns the text to flush now, if
// any, and whether a flush occurred. Call Flush separately at stream end
// to emit any residual buffer unconditionally.
func (e *Emitter) Push(chunk string, now time.Time) (string, bool) {
	e.buf.WriteString(chunk)
	if !e.ready(now) {
		return "", false
	}
	return e.drain(now), true
}

func (e *Emitter) ready(now time.Time) bool {
	if e.buf.Len() < e.cfg.MinCharsBeforeEmit {
		return false
	}
	if e.cfg.EmitOnBoundary && !e.endsOnBoundary() {
		return false
	}
	if e.started && now.Sub(e.lastEmit) < e.cfg.ThrottleInterval {
		return false
	}
	return true
}

func (e *Emitter) endsOnBoundary() bool {
	s := e.buf.String()
	if s == "" {
		return false
	}
	last := rune(s[len(s)-1])
	if last <= 127 {
		if last == ' ' || last == '\t' || last == '\n' || last == '\r' {
			return true
		}
		return strings.ContainsRune(boundaryChars, last)
	}
	r := []rune(s)
	last = r[len(r)-1]
	return isSpace(last) || strings.ContainsRune(boundaryChars, last)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// Flush unconditionally emits and clears any residual buffer, regardless
// of the configured thresholds. Used at upstream termination.
func (e *Emitter) Flush(now time.Time) (string, bool) {
	if e.buf.Len() == 0 {
		return "", false
	}
	return e.drain(now), true
}

func (e *Emitter) drain(now time.Time) string {
	out := e.buf.String()
	e.buf.Reset()
	e.lastEmit = now
	e.started = true
	return out
}
