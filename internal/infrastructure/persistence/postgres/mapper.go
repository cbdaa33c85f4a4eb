package postgres

import (
	"database/sql"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// VitalDBModel представляет запись vitals в БД
type VitalDBModel struct {
	ID         string
	PageID     string
	Tag        string
	Target     string
	URL        string
	Kind       string
	Name       string
	StartedAt  time.Time
	Duration   int64
	Score      sql.NullFloat64
	ReceivedAt time.Time
}

// ToDBModel конвертирует Domain Entity в DB Model
func ToDBModel(record *entity.VitalRecord) *VitalDBModel {
	model := &VitalDBModel{
		ID:         record.ID(),
		PageID:     record.PageID(),
		Tag:        record.Tag(),
		Target:     record.Target().String(),
		URL:        record.URL(),
		Kind:       record.Kind().String(),
		Name:       record.Name(),
		StartedAt:  record.StartedAt(),
		Duration:   record.Duration(),
		ReceivedAt: record.ReceivedAt(),
	}
	if score, ok := record.Score(); ok {
		model.Score = sql.NullFloat64{Float64: score, Valid: true}
	}
	return model
}

// ToEntity конвертирует DB Model в Domain Entity
func ToEntity(model *VitalDBModel) (*entity.VitalRecord, error) {
	kind := valueobject.MetricKind(model.Kind)
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	var score *float64
	if model.Score.Valid {
		score = entity.Float64(model.Score.Float64)
	}

	return entity.ReconstructVitalRecord(
		model.ID,
		model.PageID,
		model.Tag,
		valueobject.DeliveryTarget(model.Target),
		model.URL,
		kind,
		model.Name,
		model.StartedAt.UTC(),
		model.Duration,
		score,
		model.ReceivedAt.UTC(),
	), nil
}

// ScanVitalRow сканирует строку БД в VitalDBModel
func ScanVitalRow(row interface {
	Scan(dest ...interface{}) error
}) (*VitalDBModel, error) {
	var model VitalDBModel

	err := row.Scan(
		&model.ID,
		&model.PageID,
		&model.Tag,
		&model.Target,
		&model.URL,
		&model.Kind,
		&model.Name,
		&model.StartedAt,
		&model.Duration,
		&model.Score,
		&model.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	return &model, nil
}
