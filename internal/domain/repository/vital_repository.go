package repository

import (
	"context"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// VitalQuery задает фильтр выборки записей
type VitalQuery struct {
	Kind      valueobject.MetricKind
	TimeRange valueobject.TimeRange
	// URL ограничивает выборку одной страницей, если задан
	URL   string
	Limit int
}

// VitalRepository определяет интерфейс хранилища web vitals (Port)
type VitalRepository interface {
	// SaveBatch сохраняет записи одной транзакцией
	SaveBatch(ctx context.Context, records []*entity.VitalRecord) error

	// Find возвращает записи по фильтру, отсортированные по started_at
	Find(ctx context.Context, query VitalQuery) ([]*entity.VitalRecord, error)

	// FindLatestByURL возвращает записи последнего envelope страницы
	FindLatestByURL(ctx context.Context, url string) ([]*entity.VitalRecord, error)

	// DeleteOlderThan удаляет записи, полученные раньше указанного момента
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
