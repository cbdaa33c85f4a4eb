package service

import (
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
)

const (
	// clsSessionGap is the largest gap between consecutive shifts in one session window.
	clsSessionGap = 1000.0
	// clsSessionSpan is the longest a session window may last, from its first shift.
	clsSessionSpan = 5000.0
)

// CLSAggregator groups layout shifts into session windows and tracks the worst one.
// It is single-owner state: callers must not call Process concurrently.
type CLSAggregator struct {
	sessionValue   float64
	sessionEntries []entity.RawTimingEntry

	clsValue   float64
	clsEntries []entity.RawTimingEntry
}

// NewCLSAggregator создает агрегатор с пустой сессией
func NewCLSAggregator() *CLSAggregator {
	return &CLSAggregator{}
}

// Process applies one delivered layout-shift batch. emit is called, in the middle of
// the loop, every time the current session window becomes the new maximum; it
// receives a snapshot of the entries backing that maximum.
//
// A batch where no entry has sources is ignored. An entry with recent input stops
// processing of the rest of the batch, not only of that entry.
func (a *CLSAggregator) Process(batch []entity.RawTimingEntry, emit func([]entity.RawTimingEntry)) {
	if !hasAnySources(batch) {
		return
	}

	for _, entry := range batch {
		if entry.HadRecentInput {
			return
		}

		if a.continuesSession(entry) {
			a.sessionValue += entry.ScoreValue()
			a.sessionEntries = append(a.sessionEntries, entry.Clone())
		} else {
			a.sessionValue = entry.ScoreValue()
			a.sessionEntries = []entity.RawTimingEntry{entry.Clone()}
		}

		if a.sessionValue > a.clsValue {
			a.clsValue = a.sessionValue
			a.clsEntries = entity.CloneEntries(a.sessionEntries)

			if emit != nil {
				emit(entity.CloneEntries(a.clsEntries))
			}
		}
	}
}

func (a *CLSAggregator) continuesSession(entry entity.RawTimingEntry) bool {
	if a.sessionValue == 0 || len(a.sessionEntries) == 0 {
		return false
	}

	first := a.sessionEntries[0]
	last := a.sessionEntries[len(a.sessionEntries)-1]

	return entry.StartTime-last.StartTime < clsSessionGap &&
		entry.StartTime-first.StartTime < clsSessionSpan
}

// Value returns the running maximum session score.
func (a *CLSAggregator) Value() float64 {
	return a.clsValue
}

// Entries returns a copy of the entries backing the running maximum.
func (a *CLSAggregator) Entries() []entity.RawTimingEntry {
	return entity.CloneEntries(a.clsEntries)
}

// SessionValue returns the score of the session window currently open.
func (a *CLSAggregator) SessionValue() float64 {
	return a.sessionValue
}

func hasAnySources(batch []entity.RawTimingEntry) bool {
	for _, entry := range batch {
		if len(entry.Sources) > 0 {
			return true
		}
	}
	return false
}
