// Package trigger implements keyword detection, highlighting, and trigger
// deduplication.
package trigger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Detector matches whole-word, case-insensitive occurrences of a configured
// keyword. "geminists" never matches the keyword "gemini".
type Detector struct {
	keyword string
	word    *regexp.Regexp
	wrap    *regexp.Regexp
}

// NewDetector compiles the matchers for keyword.
func NewDetector(keyword string) (*Detector, error) {
	kw := strings.TrimSpace(keyword)
	if kw == "" {
		return nil, errors.New("trigger: empty keyword")
	}
	quoted := regexp.QuoteMeta(kw)
	word, err := regexp.Compile(`(?i)\b` + quoted + `\b`)
	if err != nil {
		return nil, fmt.Errorf("trigger: compile keyword %q: %w", kw, err)
	}
	// The wrap pattern also consumes surrounding bold markers so that
	// re-highlighting already-highlighted text is a no-op.
	wrap, err := regexp.Compile(`(?i)(\*\*)?\b(` + quoted + `)\b(\*\*)?`)
	if err != nil {
		return nil, fmt.Errorf("trigger: compile keyword %q: %w", kw, err)
	}
	return &Detector{keyword: kw, word: word, wrap: wrap}, nil
}

// Keyword returns the configured keyword.
func (d *Detector) Keyword() string { return d.keyword }

// Match reports whether text contains the keyword as a whole word. Empty
// text never matches.
func (d *Detector) Match(text string) bool {
	if text == "" {
		return false
	}
	return d.word.MatchString(text)
}

// Highlight wraps every whole-word occurrence of the keyword in bold
// markers, preserving the original casing. Text without a match is returned
// unchanged, and already-wrapped occurrences are not wrapped again.
func (d *Detector) Highlight(text string) string {
	if text == "" || !d.word.MatchString(text) {
		return text
	}
	return d.wrap.ReplaceAllString(text, "**$2**")
}

// Key builds the dedup key for one trigger event. Two events with the same
// entry id, end time, and trigger presence are the same event.
func Key(id, endTime string, present bool) string {
	return fmt.Sprintf("%s:%s:%t", id, endTime, present)
}

// Ledger is the set of trigger keys already handled. It only grows; the
// process is expected to run for daily-scale durations before restart, and
// history is deliberately lost on restart.
type Ledger struct {
	seen map[string]struct{}
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Seen reports whether key has been recorded.
func (l *Ledger) Seen(key string) bool {
	_, ok := l.seen[key]
	return ok
}

// Record marks key as handled.
func (l *Ledger) Record(key string) {
	l.seen[key] = struct{}{}
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int { return len(l.seen) }
