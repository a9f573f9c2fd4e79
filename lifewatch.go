// Package lifewatch implements a keyword-triggered lifelog polling daemon.
//
// The poll loop fetches the day's lifelog entries, classifies each entry as
// new, changed, or unchanged, and acts on the single most recent update of
// the cycle: keyword occurrences are highlighted, fresh trigger events are
// deduplicated and handed to the external analysis CLI, and every update is
// appended to the daily transcript. Fetch failures retry forever with
// exponential backoff; downstream failures are logged and never stop the
// loop.
package lifewatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/lifewatch/internal/analysis"
	"github.com/hazyhaar/lifewatch/internal/feed"
	"github.com/hazyhaar/lifewatch/internal/journal"
	"github.com/hazyhaar/lifewatch/internal/notify"
	"github.com/hazyhaar/lifewatch/internal/track"
	"github.com/hazyhaar/lifewatch/internal/transcript"
	"github.com/hazyhaar/lifewatch/internal/trigger"
)

// defaultTitle labels entries the feed delivers without a title.
const defaultTitle = "Lifelog Update"

// Feed retrieves the current entries for a day, optionally bounded below by
// a start timestamp.
type Feed interface {
	Entries(ctx context.Context, date, start string) ([]feed.Entry, error)
}

// Notifier delivers a notification message. Failures are logged only.
type Notifier interface {
	Publish(ctx context.Context, msg notify.Message) error
}

// Analyzer runs the external analysis command.
type Analyzer interface {
	Probe(ctx context.Context) error
	Run(ctx context.Context, query string) (string, error)
}

// Transcript receives every entry update and serves the analysis context.
type Transcript interface {
	LogDifference(prev, next, timestamp, title, date string) error
	Context(maxChars int) string
	Today() string
}

// CycleJournal records per-cycle outcomes. Optional.
type CycleJournal interface {
	Record(ctx context.Context, c *journal.Cycle) error
}

// Service owns the poll loop and all of its state: the entry tracker, the
// trigger dedup ledger, and the backoff counter. It has exactly one writer
// (Run) so no locking is needed beyond the atomic stats counters.
type Service struct {
	config     *Config
	feed       Feed
	detector   *trigger.Detector
	ledger     *trigger.Ledger
	tracker    *track.Tracker
	notifier   Notifier
	analyzer   Analyzer
	transcript Transcript
	journal    CycleJournal
	logger     *slog.Logger

	cycles         atomic.Int64
	fetchErrors    atomic.Int64
	updates        atomic.Int64
	triggers       atomic.Int64
	notifications  atomic.Int64
	notifyErrors   atomic.Int64
	analysisErrors atomic.Int64
	tracked        atomic.Int64
	watermark      atomic.Value // string
}

// ServiceOption overrides a collaborator during creation, mainly for tests.
type ServiceOption func(*Service)

// WithFeed sets the feed client.
func WithFeed(f Feed) ServiceOption {
	return func(s *Service) { s.feed = f }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithAnalyzer sets the analysis runner.
func WithAnalyzer(a Analyzer) ServiceOption {
	return func(s *Service) { s.analyzer = a }
}

// WithTranscript sets the transcript manager.
func WithTranscript(t Transcript) ServiceOption {
	return func(s *Service) { s.transcript = t }
}

// WithJournal sets the cycle journal.
func WithJournal(j CycleJournal) ServiceOption {
	return func(s *Service) { s.journal = j }
}

// New creates a Service from configuration. Collaborators not overridden by
// options are built from the config; the journal and notifier stay nil when
// their config is empty.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	detector, err := trigger.NewDetector(cfg.Keyword)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	loc, err := time.LoadLocation(cfg.Feed.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, cfg.Feed.Timezone, err)
	}

	svc := &Service{
		config:   cfg,
		detector: detector,
		ledger:   trigger.NewLedger(),
		tracker:  track.New(cfg.StabilityThreshold),
		logger:   logger,
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.feed == nil {
		svc.feed = feed.New(feed.Config{
			URL:      cfg.Feed.URL,
			APIKey:   cfg.Feed.APIKey,
			Timezone: cfg.Feed.Timezone,
			Limit:    cfg.Feed.Limit,
			Timeout:  cfg.Feed.Timeout,
		})
	}
	if svc.notifier == nil && cfg.Notify.URL != "" {
		svc.notifier = notify.New(cfg.Notify.URL, notify.WithMaxBytes(cfg.Notify.MaxBytes))
	}
	if svc.analyzer == nil {
		svc.analyzer = analysis.New(analysis.Config{
			Command: cfg.Analysis.Command,
			Timeout: cfg.Analysis.Timeout,
			Logger:  logger,
		})
	}
	if svc.transcript == nil {
		svc.transcript = transcript.NewManager(cfg.Transcript.Dir, loc)
	}
	if svc.journal == nil && cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		svc.journal = j
	}

	return svc, nil
}

// Run executes the poll loop until ctx is cancelled. Only cancellation ends
// the loop; every other failure is retried or logged.
func (s *Service) Run(ctx context.Context) error {
	if err := s.analyzer.Probe(ctx); err != nil {
		s.logger.Warn("lifewatch: analysis command unavailable, trigger handling degraded",
			"command", s.config.Analysis.Command, "error", err)
	} else {
		s.logger.Info("lifewatch: analysis command available", "command", s.config.Analysis.Command)
	}

	s.logger.Info("lifewatch: polling started",
		"keyword", s.config.Keyword,
		"threshold", s.config.StabilityThreshold,
		"backoff_initial", s.config.Backoff.Initial,
		"backoff_max", s.config.Backoff.Max)

	bo := newBackoff(s.config.Backoff.Initial, s.config.Backoff.Max)

	for {
		started := time.Now()
		date := s.transcript.Today()

		entries, err := s.feed.Entries(ctx, date, s.tracker.Watermark())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fetchErrors.Add(1)
			s.logger.Warn("lifewatch: fetch failed", "error", err, "retry_in", bo.Current())
			s.record(ctx, &journal.Cycle{
				Status:   journal.StatusFetchError,
				Error:    err.Error(),
				Duration: time.Since(started),
			})
			if !sleep(ctx, bo.Current()) {
				return ctx.Err()
			}
			bo.Fail()
			continue
		}
		bo.Reset()

		prevWatermark := s.tracker.Watermark()
		res := s.tracker.Classify(entries)
		s.cycles.Add(1)
		s.tracked.Store(int64(s.tracker.Len()))
		s.watermark.Store(res.Watermark)

		cyc := &journal.Cycle{
			Status:     journal.StatusOK,
			EntryCount: len(entries),
			Watermark:  res.Watermark,
		}
		if res.Update != nil {
			s.updates.Add(1)
			s.processUpdate(ctx, date, res.Update, cyc)
		}
		cyc.Duration = time.Since(started)
		s.record(ctx, cyc)

		if res.Watermark != "" && res.Watermark != prevWatermark {
			s.logger.Info("lifewatch: stable watermark advanced",
				"watermark", res.Watermark, "stable", len(res.Stable))
		}

		if !sleep(ctx, bo.Current()) {
			return ctx.Err()
		}
	}
}

// processUpdate handles the cycle's most recent update: trigger detection,
// dedup, trigger handling, and the unconditional transcript write.
func (s *Service) processUpdate(ctx context.Context, date string, upd *track.Update, cyc *journal.Cycle) {
	e := upd.Entry
	title := e.Title
	if title == "" {
		title = defaultTitle
	}

	matched := s.detector.Match(e.Content)
	highlighted := s.detector.Highlight(e.Content)
	cyc.UpdatedID = e.ID

	key := trigger.Key(e.ID, e.EndTime, matched)
	if matched && !s.ledger.Seen(key) {
		s.ledger.Record(key)
		s.triggers.Add(1)
		cyc.TriggerSeen = true
		s.logger.Info("lifewatch: new trigger", "entry", e.ID, "title", title, "end_time", e.EndTime)
		s.handleTrigger(ctx, title, e.EndTime, highlighted)
	}

	if err := s.transcript.LogDifference(upd.PrevContent, highlighted, e.EndTime, title, date); err != nil {
		s.logger.Error("lifewatch: transcript write failed", "error", err)
	}
}

// handleTrigger runs the analysis command and publishes the outcome. The
// call is synchronous: the command's own timeout bounds it, and the cycle
// does not proceed until it returns. Failures never reach the fetch/backoff
// path.
func (s *Service) handleTrigger(ctx context.Context, title, endTime, highlighted string) {
	query := s.buildQuery(title, endTime, highlighted)

	response, err := s.analyzer.Run(ctx, query)
	if err != nil {
		s.analysisErrors.Add(1)
		s.logger.Error("lifewatch: analysis failed", "error", err)
		s.publish(ctx, notify.Message{
			Body:     fmt.Sprintf("Analysis error: %v", err),
			Title:    "Lifewatch Error",
			Priority: "high",
			Tags:     "error," + s.config.Keyword,
		})
		return
	}

	s.publish(ctx, notify.Message{
		Body:     fmt.Sprintf("Analysis\n\nTrigger: %s\n\n%s", title, response),
		Title:    "Lifewatch Analysis",
		Priority: "high",
		Tags:     "analysis," + s.config.Keyword,
	})
}

// buildQuery assembles the analysis query from the trigger entry and the
// truncated transcript context.
func (s *Service) buildQuery(title, endTime, highlighted string) string {
	context := s.transcript.Context(s.config.Analysis.MaxContextChars)
	return fmt.Sprintf(`TRANSCRIPT ANALYSIS REQUEST - RESPOND VERY BRIEFLY (MAX 500 WORDS)

Current Trigger Entry:
Title: %s
Time: %s
Content: %s

Full Context (Today's Transcript):
%s

Provide a very brief analysis addressing any questions or requests in the
transcript, focusing on the trigger entry. Keep the response short and
actionable for mobile notifications.`, title, endTime, highlighted, context)
}

func (s *Service) publish(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.notifyErrors.Add(1)
		s.logger.Error("lifewatch: notification failed", "error", err)
		return
	}
	s.notifications.Add(1)
}

func (s *Service) record(ctx context.Context, c *journal.Cycle) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, c); err != nil {
		s.logger.Warn("lifewatch: journal write failed", "error", err)
	}
}

// sleep waits d or until ctx is cancelled. Returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
