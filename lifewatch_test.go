package lifewatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/lifewatch/internal/feed"
	"github.com/hazyhaar/lifewatch/internal/notify"
)

// scriptFeed replays a fixed sequence of fetch results, one per cycle, and
// cancels the loop when the script runs out.
type scriptFeed struct {
	script []scriptStep
	starts []string
	idx    int
	cancel context.CancelFunc
}

type scriptStep struct {
	entries []feed.Entry
	err     error
}

func (f *scriptFeed) Entries(ctx context.Context, date, start string) ([]feed.Entry, error) {
	if f.idx >= len(f.script) {
		f.cancel()
		return nil, ctx.Err()
	}
	f.starts = append(f.starts, start)
	step := f.script[f.idx]
	f.idx++
	return step.entries, step.err
}

type stubAnalyzer struct {
	queries  []string
	probeErr error
	runErr   error
}

func (a *stubAnalyzer) Probe(context.Context) error { return a.probeErr }

func (a *stubAnalyzer) Run(_ context.Context, query string) (string, error) {
	a.queries = append(a.queries, query)
	if a.runErr != nil {
		return "", a.runErr
	}
	return "brief response", nil
}

type stubNotifier struct {
	messages []notify.Message
	err      error
}

func (n *stubNotifier) Publish(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return n.err
}

type logged struct {
	prev, next, timestamp, title, date string
}

type stubTranscript struct {
	entries []logged
	err     error
}

func (t *stubTranscript) LogDifference(prev, next, timestamp, title, date string) error {
	t.entries = append(t.entries, logged{prev, next, timestamp, title, date})
	return t.err
}

func (t *stubTranscript) Context(int) string { return "transcript context" }
func (t *stubTranscript) Today() string      { return "2025-01-02" }

func testConfig() *Config {
	cfg := defaultConfig()
	cfg.Feed.Timezone = "UTC"
	cfg.Backoff.Initial = time.Millisecond
	cfg.Backoff.Max = 4 * time.Millisecond
	return cfg
}

func runService(t *testing.T, script []scriptStep, az *stubAnalyzer, nt *stubNotifier) (*Service, *scriptFeed, *stubTranscript) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fd := &scriptFeed{script: script, cancel: cancel}
	tr := &stubTranscript{}

	svc, err := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithFeed(fd), WithAnalyzer(az), WithNotifier(nt), WithTranscript(tr))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run: %v", err)
	}
	return svc, fd, tr
}

func entryA(content, endTime string) feed.Entry {
	return feed.Entry{ID: "A", Content: content, EndTime: endTime, Title: "Meeting"}
}

func TestRun_EndToEndScenario(t *testing.T) {
	// Cycle 1: A appears. Cycles 2-3: unchanged, A stabilizes and the
	// watermark advances. Cycle 4: A changes with a keyword mention — one
	// trigger fires. Cycle 5: unchanged again, the dedup ledger holds.
	const t1 = "2025-01-02T10:00:00Z"
	const t2 = "2025-01-02T10:05:00Z"

	az := &stubAnalyzer{}
	nt := &stubNotifier{}
	script := []scriptStep{
		{entries: []feed.Entry{entryA("hello", t1)}},
		{entries: []feed.Entry{entryA("hello", t1)}},
		{entries: []feed.Entry{entryA("hello", t1)}},
		{entries: []feed.Entry{entryA("hello Gemini", t2)}},
		{entries: []feed.Entry{entryA("hello Gemini", t2)}},
	}
	svc, fd, tr := runService(t, script, az, nt)

	// Fetch windows: no watermark for cycles 1-3 (below threshold until
	// cycle 3 completes), T1 for cycle 4, none again after A destabilized.
	wantStarts := []string{"", "", "", t1, ""}
	for i, want := range wantStarts {
		if fd.starts[i] != want {
			t.Errorf("cycle %d start: got %q, want %q", i+1, fd.starts[i], want)
		}
	}

	// Exactly one trigger: cycle 4. The unchanged re-fetch in cycle 5 must
	// not re-run analysis.
	if len(az.queries) != 1 {
		t.Fatalf("analysis runs: got %d, want 1", len(az.queries))
	}
	if !strings.Contains(az.queries[0], "hello **Gemini**") {
		t.Errorf("query missing highlighted content: %q", az.queries[0])
	}
	if !strings.Contains(az.queries[0], "transcript context") {
		t.Errorf("query missing transcript context: %q", az.queries[0])
	}

	if len(nt.messages) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(nt.messages))
	}
	if !strings.Contains(nt.messages[0].Body, "brief response") {
		t.Errorf("notification body: %q", nt.messages[0].Body)
	}
	if nt.messages[0].Priority != "high" {
		t.Errorf("notification priority: %q", nt.messages[0].Priority)
	}

	// Transcript received both updates: the new entry and the change.
	if len(tr.entries) != 2 {
		t.Fatalf("transcript writes: got %d, want 2", len(tr.entries))
	}
	if tr.entries[0].prev != "" || tr.entries[0].next != "hello" {
		t.Errorf("first write: got %+v", tr.entries[0])
	}
	if tr.entries[1].prev != "hello" || tr.entries[1].next != "hello **Gemini**" {
		t.Errorf("second write: got %+v", tr.entries[1])
	}

	st := svc.Stats()
	if st.Cycles != 5 || st.Updates != 2 || st.Triggers != 1 || st.FetchErrors != 0 {
		t.Errorf("stats: got %+v", st)
	}
	if st.Watermark != "" {
		t.Errorf("watermark after destabilizing change: got %q", st.Watermark)
	}
}

func TestRun_FetchFailureRetriesWithBackoff(t *testing.T) {
	az := &stubAnalyzer{}
	nt := &stubNotifier{}
	script := []scriptStep{
		{err: errors.New("http 500")},
		{err: errors.New("http 500")},
		{entries: []feed.Entry{entryA("hello", "2025-01-02T10:00:00Z")}},
	}
	svc, _, tr := runService(t, script, az, nt)

	st := svc.Stats()
	if st.FetchErrors != 2 {
		t.Errorf("fetch errors: got %d, want 2", st.FetchErrors)
	}
	// The loop survived the failures and processed the eventual success.
	if st.Cycles != 1 || len(tr.entries) != 1 {
		t.Errorf("post-failure cycle: stats %+v, writes %d", st, len(tr.entries))
	}
}

func TestRun_AnalysisFailureDoesNotStopLoop(t *testing.T) {
	az := &stubAnalyzer{runErr: errors.New("exit status 1")}
	nt := &stubNotifier{}
	script := []scriptStep{
		{entries: []feed.Entry{entryA("ping Gemini", "2025-01-02T10:00:00Z")}},
		{entries: []feed.Entry{entryA("ping Gemini", "2025-01-02T10:00:00Z")}},
	}
	svc, _, tr := runService(t, script, az, nt)

	st := svc.Stats()
	if st.AnalysisErrors != 1 {
		t.Errorf("analysis errors: got %d, want 1", st.AnalysisErrors)
	}
	if st.Cycles != 2 {
		t.Errorf("cycles: got %d, want 2", st.Cycles)
	}
	// The error notification went out and the transcript still logged.
	if len(nt.messages) != 1 || nt.messages[0].Title != "Lifewatch Error" {
		t.Errorf("error notification: got %+v", nt.messages)
	}
	if len(tr.entries) != 1 {
		t.Errorf("transcript writes: got %d, want 1", len(tr.entries))
	}
}

func TestRun_NotifyFailureLoggedOnly(t *testing.T) {
	az := &stubAnalyzer{}
	nt := &stubNotifier{err: errors.New("http 429")}
	script := []scriptStep{
		{entries: []feed.Entry{entryA("ask Gemini", "2025-01-02T10:00:00Z")}},
	}
	svc, _, _ := runService(t, script, az, nt)

	st := svc.Stats()
	if st.NotifyErrors != 1 || st.Notifications != 0 {
		t.Errorf("notify counters: got %+v", st)
	}
	if st.Cycles != 1 {
		t.Errorf("cycles: got %d, want 1", st.Cycles)
	}
}

func TestRun_DegradedProbeStillPolls(t *testing.T) {
	az := &stubAnalyzer{probeErr: errors.New("not installed")}
	nt := &stubNotifier{}
	script := []scriptStep{
		{entries: []feed.Entry{entryA("hello", "2025-01-02T10:00:00Z")}},
	}
	svc, _, tr := runService(t, script, az, nt)

	if svc.Stats().Cycles != 1 || len(tr.entries) != 1 {
		t.Error("loop must run despite a failed capability probe")
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Feed.Timezone = "Not/AZone"
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
