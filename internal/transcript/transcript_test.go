package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	at := time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestAppend_CreatesDatedTreeWithHeader(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.UTC, WithClock(fixedClock()))

	if err := m.Append("hello world", "2025-01-02T10:00:00Z", "Morning", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	path := filepath.Join(dir, "2025", "01", "02", "transcript.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(data)
	if !strings.HasPrefix(got, "# Daily Transcript - 2025-01-02\n") {
		t.Errorf("missing header: %q", got[:60])
	}
	if !strings.Contains(got, "## Morning - 10:30:00") {
		t.Errorf("missing entry heading: %q", got)
	}
	if !strings.Contains(got, "*Content timestamp: 2025-01-02T10:00:00Z*") {
		t.Errorf("missing content timestamp: %q", got)
	}
	if !strings.Contains(got, "hello world") {
		t.Errorf("missing content: %q", got)
	}
}

func TestAppend_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.UTC, WithClock(fixedClock()))

	m.Append("one", "t1", "A", "")
	m.Append("two", "t2", "B", "")

	data, _ := os.ReadFile(filepath.Join(dir, "2025", "01", "02", "transcript.txt"))
	if n := strings.Count(string(data), "# Daily Transcript"); n != 1 {
		t.Errorf("header count: got %d, want 1", n)
	}
}

func TestLogDifference_WritesDiffAnnotation(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.UTC, WithClock(fixedClock()))

	err := m.LogDifference("hello", "hello **Gemini**", "t1", "Update", "")
	if err != nil {
		t.Fatalf("log difference: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2025", "01", "02", "debug_diffs.txt"))
	if err != nil {
		t.Fatalf("read diff log: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "- hello") || !strings.Contains(got, "+ hello **Gemini**") {
		t.Errorf("diff lines missing: %q", got)
	}
	if !strings.Contains(got, "Title: Update") {
		t.Errorf("diff header missing: %q", got)
	}
}

func TestLogDifference_NoDiffFileWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.UTC, WithClock(fixedClock()))

	if err := m.LogDifference("same", "same", "t1", "Update", ""); err != nil {
		t.Fatalf("log difference: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2025", "01", "02", "debug_diffs.txt")); !os.IsNotExist(err) {
		t.Error("diff log must not exist for identical content")
	}
}

func TestContext_MissingTranscript(t *testing.T) {
	m := NewManager(t.TempDir(), time.UTC, WithClock(fixedClock()))
	got := m.Context(1000)
	if got != "No transcript found for 2025-01-02" {
		t.Errorf("got %q", got)
	}
}

func TestContext_ShortTranscriptUnchanged(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, time.UTC, WithClock(fixedClock()))
	m.Append("short content", "t1", "A", "")

	got := m.Context(100000)
	if strings.Contains(got, "CONTEXT TRUNCATED") {
		t.Errorf("short transcript must not be truncated: %q", got)
	}
	if !strings.Contains(got, "short content") {
		t.Errorf("content missing: %q", got)
	}
}

func TestContext_TruncatesKeepingTail(t *testing.T) {
	// WHAT: Over-budget context keeps the most recent lines and carries
	// the truncation marker.
	// WHY: The analysis CLI has a token budget; recent entries matter most.
	dir := t.TempDir()
	m := NewManager(dir, time.UTC, WithClock(fixedClock()))
	m.Append(strings.Repeat("early line\n", 200), "t1", "Early", "")
	m.Append("the very last line", "t2", "Late", "")

	got := m.Context(500)
	if !strings.HasPrefix(got, "[CONTEXT TRUNCATED - SHOWING MOST RECENT ") {
		t.Fatalf("marker missing: %q", got[:60])
	}
	if !strings.Contains(got, "the very last line") {
		t.Errorf("tail content missing")
	}
	if len(got) > 600 {
		t.Errorf("context too large: %d chars", len(got))
	}
}

func TestDiffLines(t *testing.T) {
	if diffLines("a\nb\nc", "a\nb\nc") != "" {
		t.Error("identical input must produce no diff")
	}

	got := diffLines("a\nb\nc", "a\nX\nc")
	want := "--- previous\n+++ updated\n- b\n+ X"
	if got != want {
		t.Errorf("diff: got %q, want %q", got, want)
	}

	// Pure addition.
	got = diffLines("a", "a\nb")
	if !strings.Contains(got, "+ b") || strings.Contains(got, "- a") {
		t.Errorf("addition diff: got %q", got)
	}
}
