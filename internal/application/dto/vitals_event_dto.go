package dto

import (
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
)

// VitalsEventDTO описывает один полученный envelope
// Используется для NATS, WebSocket и кеша последних значений
type VitalsEventDTO struct {
	PageID     string          `json:"page_id,omitempty"`
	Tag        string          `json:"tag,omitempty"`
	Target     string          `json:"target"`
	ReceivedAt time.Time       `json:"received_at"`
	Kinds      []string        `json:"kinds"`
	Envelope   entity.Envelope `json:"envelope"`
}

// NewVitalsEventDTO создает событие из envelope
func NewVitalsEventDTO(source entity.VitalSource, envelope entity.Envelope, receivedAt time.Time) *VitalsEventDTO {
	kinds := envelope.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}

	return &VitalsEventDTO{
		PageID:     source.PageID,
		Tag:        source.Tag,
		Target:     source.Target.String(),
		ReceivedAt: receivedAt,
		Kinds:      names,
		Envelope:   envelope,
	}
}
