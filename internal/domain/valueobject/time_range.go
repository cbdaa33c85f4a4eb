package valueobject

import (
	"errors"
	"time"
)

// TimeRange представляет временной диапазон (Value Object)
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, errors.New("start and end times cannot be zero")
	}
	if start.After(end) {
		return TimeRange{}, errors.New("start time must be before end time")
	}

	return TimeRange{start: start, end: end}, nil
}

// NewTimeRangeFromDuration создает TimeRange, заканчивающийся в now
func NewTimeRangeFromDuration(now time.Time, duration time.Duration) (TimeRange, error) {
	if duration <= 0 {
		return TimeRange{}, errors.New("duration must be positive")
	}

	return NewTimeRange(now.Add(-duration), now)
}

func (tr TimeRange) Start() time.Time {
	return tr.start
}

func (tr TimeRange) End() time.Time {
	return tr.end
}

func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}

// Contains проверяет, попадает ли время в диапазон (границы включены)
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.start) && !t.After(tr.end)
}
