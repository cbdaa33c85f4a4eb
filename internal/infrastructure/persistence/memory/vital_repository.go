package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
)

// VitalRepository keeps vitals in process memory. Used when Postgres is disabled.
type VitalRepository struct {
	mu      sync.RWMutex
	records []*entity.VitalRecord
}

var _ repository.VitalRepository = (*VitalRepository)(nil)

func NewVitalRepository() *VitalRepository {
	return &VitalRepository{}
}

func (r *VitalRepository) SaveBatch(ctx context.Context, records []*entity.VitalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

func (r *VitalRepository) Find(ctx context.Context, q repository.VitalQuery) ([]*entity.VitalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*entity.VitalRecord
	for _, record := range r.records {
		if q.Kind != "" && record.Kind() != q.Kind {
			continue
		}
		if !q.TimeRange.Start().IsZero() && !q.TimeRange.Contains(record.ReceivedAt()) {
			continue
		}
		if q.URL != "" && record.URL() != q.URL {
			continue
		}
		result = append(result, record)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt().Before(result[j].StartedAt())
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}

	return result, nil
}

// FindLatestByURL returns the records sharing the newest receipt time for url.
func (r *VitalRepository) FindLatestByURL(ctx context.Context, url string) ([]*entity.VitalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest time.Time
	for _, record := range r.records {
		if record.URL() == url && record.ReceivedAt().After(latest) {
			latest = record.ReceivedAt()
		}
	}

	var result []*entity.VitalRecord
	for _, record := range r.records {
		if record.URL() == url && record.ReceivedAt().Equal(latest) {
			result = append(result, record)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt().Before(result[j].StartedAt())
	})

	return result, nil
}

func (r *VitalRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	var deleted int64
	for _, record := range r.records {
		if record.ReceivedAt().Before(before) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	for i := len(kept); i < len(r.records); i++ {
		r.records[i] = nil
	}
	r.records = kept

	return deleted, nil
}
