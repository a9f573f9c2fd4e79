// Package transcript manages daily transcript files.
//
// One transcript per day lives under a year/month/day folder tree. The core
// loop forwards every entry update here; the manager owns formatting, the
// diff annotation written next to the transcript, and the tail-truncated
// context handed to the analysis query.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	transcriptName = "transcript.txt"
	diffName       = "debug_diffs.txt"
)

// Manager writes and reads daily transcripts under a base directory.
type Manager struct {
	baseDir string
	loc     *time.Location
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager rooted at baseDir. Dates and entry times are
// rendered in loc; a nil loc means UTC.
func NewManager(baseDir string, loc *time.Location, opts ...Option) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	m := &Manager{baseDir: baseDir, loc: loc, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Today returns the current date in the manager's timezone as YYYY-MM-DD.
func (m *Manager) Today() string {
	return m.now().In(m.loc).Format("2006-01-02")
}

// path returns the transcript path for date, creating the folder tree.
// date must be YYYY-MM-DD; empty means today.
func (m *Manager) path(date string) (string, error) {
	if date == "" {
		date = m.Today()
	}
	parts := strings.SplitN(date, "-", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("transcript: bad date %q", date)
	}
	dir := filepath.Join(m.baseDir, parts[0], parts[1], parts[2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("transcript: mkdir %s: %w", dir, err)
	}
	return filepath.Join(dir, transcriptName), nil
}

// initialize writes the header block if the transcript does not exist yet.
func (m *Manager) initialize(path, date string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("transcript: stat: %w", err)
	}

	header := fmt.Sprintf("# Daily Transcript - %s\n# Generated: %s\n# Keyword matches are highlighted in **bold**\n\n---\n\n",
		date, m.now().In(m.loc).Format("2006-01-02 15:04:05 MST"))
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return fmt.Errorf("transcript: write header: %w", err)
	}
	return nil
}

// Append adds one entry to the daily transcript.
func (m *Manager) Append(content, timestamp, title, date string) error {
	if date == "" {
		date = m.Today()
	}
	path, err := m.path(date)
	if err != nil {
		return err
	}
	if err := m.initialize(path, date); err != nil {
		return err
	}

	entry := fmt.Sprintf("\n## %s - %s\n*Content timestamp: %s*\n\n%s\n\n---\n",
		title, m.now().In(m.loc).Format("15:04:05"), timestamp, content)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcript: open: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("transcript: append: %w", err)
	}
	return nil
}

// LogDifference appends the new content to the transcript and, when the
// content actually differs, writes a line-diff annotation to a sibling
// debug file. The transcript itself only carries the new content.
func (m *Manager) LogDifference(prev, next, timestamp, title, date string) error {
	if err := m.Append(next, timestamp, title, date); err != nil {
		return err
	}

	diff := diffLines(prev, next)
	if diff == "" {
		return nil
	}

	path, err := m.path(date)
	if err != nil {
		return err
	}
	debugPath := filepath.Join(filepath.Dir(path), diffName)

	block := fmt.Sprintf("\n--- Diff at %s ---\nTitle: %s\nContent timestamp: %s\n%s\n",
		m.now().In(m.loc).Format(time.RFC3339), title, timestamp, diff)

	f, err := os.OpenFile(debugPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcript: open diff log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("transcript: append diff: %w", err)
	}
	return nil
}

// Context returns today's transcript for use as analysis context, truncated
// to maxChars. Truncation keeps the most recent content, cuts on a line
// boundary, and prepends a marker so the consumer knows the head is missing.
func (m *Manager) Context(maxChars int) string {
	date := m.Today()
	path, err := m.path(date)
	if err != nil {
		return fmt.Sprintf("No transcript found for %s", date)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("No transcript found for %s", date)
	}
	full := string(data)

	if maxChars <= 0 || len(full) <= maxChars {
		return full
	}

	// Safety buffer keeps the result under budget after the line trim.
	safe := maxChars - 100
	if safe < 0 {
		safe = 0
	}
	tail := full[len(full)-safe:]
	if i := strings.IndexByte(tail, '\n'); i > 0 {
		tail = tail[i+1:]
	}
	return fmt.Sprintf("[CONTEXT TRUNCATED - SHOWING MOST RECENT %d CHARS]\n\n%s", len(tail), tail)
}
