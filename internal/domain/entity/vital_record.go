package entity

import (
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/google/uuid"
)

// VitalRecord представляет одну полученную web vital метрику (Aggregate Root)
type VitalRecord struct {
	id         string
	pageID     string
	tag        string
	target     valueobject.DeliveryTarget
	url        string
	kind       valueobject.MetricKind
	name       string
	startedAt  time.Time
	duration   int64
	score      *float64
	receivedAt time.Time
}

// VitalSource describes where a delivered envelope came from.
type VitalSource struct {
	PageID string
	Tag    string
	Target valueobject.DeliveryTarget
}

// NewVitalRecords разворачивает envelope в записи, по одной на метрику
func NewVitalRecords(source VitalSource, envelope Envelope, receivedAt time.Time) ([]*VitalRecord, error) {
	records := make([]*VitalRecord, 0, len(envelope.Vitals))
	for _, v := range envelope.Vitals {
		if err := v.Kind.Validate(); err != nil {
			return nil, err
		}

		var score *float64
		if v.Score != nil {
			score = Float64(*v.Score)
		}

		records = append(records, &VitalRecord{
			id:         uuid.New().String(),
			pageID:     source.PageID,
			tag:        source.Tag,
			target:     source.Target,
			url:        envelope.URL,
			kind:       v.Kind,
			name:       v.Name,
			startedAt:  time.UnixMilli(v.StartTimestamp).UTC(),
			duration:   v.Duration,
			score:      score,
			receivedAt: receivedAt,
		})
	}
	return records, nil
}

// ReconstructVitalRecord восстанавливает запись из хранилища (для Repository)
func ReconstructVitalRecord(
	id, pageID, tag string,
	target valueobject.DeliveryTarget,
	url string,
	kind valueobject.MetricKind,
	name string,
	startedAt time.Time,
	duration int64,
	score *float64,
	receivedAt time.Time,
) *VitalRecord {
	return &VitalRecord{
		id:         id,
		pageID:     pageID,
		tag:        tag,
		target:     target,
		url:        url,
		kind:       kind,
		name:       name,
		startedAt:  startedAt,
		duration:   duration,
		score:      score,
		receivedAt: receivedAt,
	}
}

func (r *VitalRecord) ID() string                         { return r.id }
func (r *VitalRecord) PageID() string                     { return r.pageID }
func (r *VitalRecord) Tag() string                        { return r.tag }
func (r *VitalRecord) Target() valueobject.DeliveryTarget { return r.target }
func (r *VitalRecord) URL() string                        { return r.url }
func (r *VitalRecord) Kind() valueobject.MetricKind       { return r.kind }
func (r *VitalRecord) Name() string                       { return r.name }
func (r *VitalRecord) StartedAt() time.Time               { return r.startedAt }
func (r *VitalRecord) Duration() int64                    { return r.duration }
func (r *VitalRecord) ReceivedAt() time.Time              { return r.receivedAt }

// Score возвращает CLS score, если он был передан
func (r *VitalRecord) Score() (float64, bool) {
	if r.score == nil {
		return 0, false
	}
	return *r.score, true
}

// Value возвращает основное значение метрики: score для CLS, миллисекунды для остальных
func (r *VitalRecord) Value() float64 {
	if r.kind == valueobject.CLS {
		score, _ := r.Score()
		return score
	}
	return float64(r.duration)
}

// IsPoor проверяет, хуже ли значение порога "poor" из web vitals
func (r *VitalRecord) IsPoor() bool {
	switch r.kind {
	case valueobject.CLS:
		return r.Value() > 0.25
	case valueobject.LCP:
		return r.Value() > 4000
	case valueobject.FCP:
		return r.Value() > 3000
	case valueobject.FID:
		return r.Value() > 300
	default:
		return false
	}
}

// NeedsImprovement проверяет, превышен ли порог "good", но не "poor"
func (r *VitalRecord) NeedsImprovement() bool {
	if r.IsPoor() {
		return false
	}
	switch r.kind {
	case valueobject.CLS:
		return r.Value() > 0.1
	case valueobject.LCP:
		return r.Value() > 2500
	case valueobject.FCP:
		return r.Value() > 1800
	case valueobject.FID:
		return r.Value() > 100
	default:
		return false
	}
}
