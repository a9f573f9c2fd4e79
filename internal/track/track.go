// Package track maintains per-entry state across poll cycles.
//
// On every cycle the Tracker classifies each fetched entry as new, changed,
// or unchanged, selects the single most recent update for downstream
// processing, and recomputes the stable watermark used to narrow the next
// fetch window.
package track

import (
	"sort"

	"github.com/hazyhaar/lifewatch/internal/feed"
)

// entryState is the stored record for one tracked entry.
type entryState struct {
	content     string
	endTime     string
	stableCount int
}

// Update is a new or changed entry observed in a cycle. PrevContent is empty
// for first-seen entries.
type Update struct {
	Entry       feed.Entry
	PrevContent string
}

// Result is the outcome of one classification cycle.
type Result struct {
	// Update is the candidate with the latest end time, nil when nothing
	// changed this cycle. When several candidates share the maximum end
	// time the first one in fetch order wins.
	Update *Update
	// Stable lists the ids whose unchanged streak reached the threshold,
	// sorted for determinism.
	Stable []string
	// Watermark is the latest end time among stable entries, empty when no
	// entry qualifies. Recomputed from scratch every cycle so removed
	// entries cannot leave a stale value behind.
	Watermark string
}

// Tracker holds the tracked-entry map for the lifetime of the poll loop.
// It has exactly one writer (the loop) and is not safe for concurrent use.
type Tracker struct {
	threshold int
	entries   map[string]*entryState
	watermark string
}

// New creates a Tracker. Entries are considered stable after threshold
// consecutive unchanged cycles (default 3).
func New(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Tracker{
		threshold: threshold,
		entries:   make(map[string]*entryState),
	}
}

// Watermark returns the stable watermark from the last cycle, empty when no
// entry has qualified yet.
func (t *Tracker) Watermark() string { return t.watermark }

// Len returns the number of currently tracked entries.
func (t *Tracker) Len() int { return len(t.entries) }

// Classify runs one cycle over the fetched entries.
//
// New ids start with an unchanged streak of 1. A content or end-time change
// resets the streak to 1. Identical content and end time increment it. Ids
// absent from entries are dropped: the source no longer reports them.
func (t *Tracker) Classify(entries []feed.Entry) Result {
	seen := make(map[string]struct{}, len(entries))
	var best *Update

	for _, e := range entries {
		seen[e.ID] = struct{}{}
		prev, ok := t.entries[e.ID]
		switch {
		case !ok:
			best = pick(best, &Update{Entry: e})
			t.entries[e.ID] = &entryState{content: e.Content, endTime: e.EndTime, stableCount: 1}
		case e.Content != prev.content || e.EndTime != prev.endTime:
			best = pick(best, &Update{Entry: e, PrevContent: prev.content})
			prev.content = e.Content
			prev.endTime = e.EndTime
			prev.stableCount = 1
		default:
			prev.stableCount++
		}
	}

	for id := range t.entries {
		if _, ok := seen[id]; !ok {
			delete(t.entries, id)
		}
	}

	res := Result{Update: best}
	for id, st := range t.entries {
		if st.stableCount >= t.threshold {
			res.Stable = append(res.Stable, id)
			if st.endTime > res.Watermark {
				res.Watermark = st.endTime
			}
		}
	}
	sort.Strings(res.Stable)
	t.watermark = res.Watermark
	return res
}

// pick keeps the candidate with the strictly greater end time, so on ties
// the earlier candidate in fetch order is retained.
func pick(cur, cand *Update) *Update {
	if cur == nil || cand.Entry.EndTime > cur.Entry.EndTime {
		return cand
	}
	return cur
}
