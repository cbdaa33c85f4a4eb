package service

import (
	"fmt"
	"math"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// PageInfo exposes the page facts the normalizer stamps onto an envelope.
type PageInfo interface {
	// TimeOrigin is the navigation origin in epoch milliseconds.
	TimeOrigin() float64
	URL() string
}

// NormalizeResult is an envelope plus the entries that had to be dropped.
type NormalizeResult struct {
	Envelope entity.Envelope
	Dropped  []error
}

// MetricNormalizer converts raw timeline batches into wire envelopes (Domain Service)
type MetricNormalizer struct {
	page PageInfo
}

// NewMetricNormalizer создает новый MetricNormalizer
func NewMetricNormalizer(page PageInfo) *MetricNormalizer {
	return &MetricNormalizer{page: page}
}

// OriginEpoch returns the navigation origin truncated to whole milliseconds.
func (n *MetricNormalizer) OriginEpoch() int64 {
	return truncate(n.page.TimeOrigin())
}

// Normalize maps a batch to an envelope, preserving batch order.
// A nil batch is malformed; a batch with nothing mappable is empty.
// The batch is never mutated and the envelope shares no memory with it.
func (n *MetricNormalizer) Normalize(batch []entity.RawTimingEntry) (NormalizeResult, error) {
	if batch == nil {
		return NormalizeResult{}, fmt.Errorf("%w: batch is nil", entity.ErrMalformedInput)
	}
	if len(batch) == 0 {
		return NormalizeResult{}, entity.ErrEmptyBatch
	}

	origin := n.OriginEpoch()
	result := NormalizeResult{
		Envelope: entity.Envelope{
			Timestamp: origin,
			URL:       n.page.URL(),
			Vitals:    make([]entity.NormalizedMetric, 0, len(batch)),
		},
	}

	for _, entry := range batch {
		kind, err := valueobject.KindFromEntryType(entry.EntryType)
		if err != nil {
			result.Dropped = append(result.Dropped, err)
			continue
		}
		result.Envelope.Vitals = append(result.Envelope.Vitals, normalizeEntry(entry, kind, origin))
	}

	if len(result.Envelope.Vitals) == 0 {
		return result, entity.ErrEmptyBatch
	}

	return result, nil
}

func normalizeEntry(entry entity.RawTimingEntry, kind valueobject.MetricKind, origin int64) entity.NormalizedMetric {
	name := entry.Name
	if name == "" {
		name = entry.EntryType
	}

	metric := entity.NormalizedMetric{
		Key:            entity.MetricKey,
		Name:           name,
		Kind:           kind,
		StartTimestamp: origin + truncate(entry.StartTime),
		Duration:       duration(entry, kind),
	}
	if entry.Value != nil {
		metric.Score = entity.Float64(*entry.Value)
	}

	return metric
}

// duration is the input delay for FID and the start time for everything else.
func duration(entry entity.RawTimingEntry, kind valueobject.MetricKind) int64 {
	if kind != valueobject.FID {
		return truncate(entry.StartTime)
	}
	if entry.ProcessingStart == nil {
		return 0
	}
	return truncate(*entry.ProcessingStart - entry.StartTime)
}

// truncate drops the fractional part toward zero. Non-finite values become 0.
func truncate(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Trunc(v))
}
