package lifewatch

// Stats are point-in-time poll loop counters.
type Stats struct {
	Cycles         int64  `json:"cycles"`
	FetchErrors    int64  `json:"fetch_errors"`
	Updates        int64  `json:"updates"`
	Triggers       int64  `json:"triggers"`
	Notifications  int64  `json:"notifications"`
	NotifyErrors   int64  `json:"notify_errors"`
	AnalysisErrors int64  `json:"analysis_errors"`
	Tracked        int64  `json:"tracked"`
	Watermark      string `json:"watermark,omitempty"`
}

// Stats returns the current counters. Safe to call from other goroutines
// while the poll loop runs.
func (s *Service) Stats() Stats {
	st := Stats{
		Cycles:         s.cycles.Load(),
		FetchErrors:    s.fetchErrors.Load(),
		Updates:        s.updates.Load(),
		Triggers:       s.triggers.Load(),
		Notifications:  s.notifications.Load(),
		NotifyErrors:   s.notifyErrors.Load(),
		AnalysisErrors: s.analysisErrors.Load(),
		Tracked:        s.tracked.Load(),
	}
	if wm, ok := s.watermark.Load().(string); ok {
		st.Watermark = wm
	}
	return st
}
