package dto

import (
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/service"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// VitalDTO представляет сохраненную метрику для API
type VitalDTO struct {
	ID         string    `json:"id,omitempty"`
	PageID     string    `json:"page_id,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	Target     string    `json:"target"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	Duration   int64     `json:"duration"`
	Score      *float64  `json:"score,omitempty"`
	Value      float64   `json:"value"`
	ReceivedAt time.Time `json:"received_at"`
	// Computed fields
	IsPoor           bool `json:"is_poor"`
	NeedsImprovement bool `json:"needs_improvement"`
}

// FromVitalRecord конвертирует Domain Entity в DTO
func FromVitalRecord(r *entity.VitalRecord) *VitalDTO {
	d := &VitalDTO{
		ID:               r.ID(),
		PageID:           r.PageID(),
		Tag:              r.Tag(),
		Target:           r.Target().String(),
		URL:              r.URL(),
		Kind:             r.Kind().String(),
		Name:             r.Name(),
		StartedAt:        r.StartedAt(),
		Duration:         r.Duration(),
		Value:            r.Value(),
		ReceivedAt:       r.ReceivedAt(),
		IsPoor:           r.IsPoor(),
		NeedsImprovement: r.NeedsImprovement(),
	}
	if score, ok := r.Score(); ok {
		d.Score = &score
	}
	return d
}

// ToVitalDTOs конвертирует слайс Entity в слайс DTO
func ToVitalDTOs(records []*entity.VitalRecord) []*VitalDTO {
	dtos := make([]*VitalDTO, len(records))
	for i, r := range records {
		dtos[i] = FromVitalRecord(r)
	}
	return dtos
}

// FromVitalsEvent разворачивает закешированное событие в DTO без идентификаторов
func FromVitalsEvent(event *VitalsEventDTO) []*VitalDTO {
	dtos := make([]*VitalDTO, 0, len(event.Envelope.Vitals))
	for _, v := range event.Envelope.Vitals {
		var score *float64
		if v.Score != nil {
			score = entity.Float64(*v.Score)
		}
		record := entity.ReconstructVitalRecord(
			"",
			event.PageID,
			event.Tag,
			valueobject.DeliveryTarget(event.Target),
			event.Envelope.URL,
			v.Kind,
			v.Name,
			time.UnixMilli(v.StartTimestamp).UTC(),
			v.Duration,
			score,
			event.ReceivedAt,
		)
		dtos = append(dtos, FromVitalRecord(record))
	}
	return dtos
}

// VitalHistoryDTO представляет историю одного типа метрик с агрегатами
type VitalHistoryDTO struct {
	Kind                  string      `json:"kind"`
	URL                   string      `json:"url,omitempty"`
	Vitals                []*VitalDTO `json:"vitals"`
	Count                 int         `json:"count"`
	Average               float64     `json:"average"`
	Min                   float64     `json:"min"`
	Max                   float64     `json:"max"`
	P75                   float64     `json:"p75"`
	PoorCount             int         `json:"poor_count"`
	NeedsImprovementCount int         `json:"needs_improvement_count"`
}

// NewVitalHistoryDTO собирает историю из записей и сводки
func NewVitalHistoryDTO(kind, url string, records []*entity.VitalRecord, summary service.VitalSummary) *VitalHistoryDTO {
	return &VitalHistoryDTO{
		Kind:                  kind,
		URL:                   url,
		Vitals:                ToVitalDTOs(records),
		Count:                 summary.Count,
		Average:               summary.Average,
		Min:                   summary.Min,
		Max:                   summary.Max,
		P75:                   summary.P75,
		PoorCount:             summary.PoorCount,
		NeedsImprovementCount: summary.NeedsImprovementCount,
	}
}
