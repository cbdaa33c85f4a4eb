package service

import (
	"errors"
	"sort"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
)

var errNoVitals = errors.New("no vitals to aggregate")

// VitalSummary содержит агрегаты по набору записей одного типа
type VitalSummary struct {
	Count                 int
	Average               float64
	Min                   float64
	Max                   float64
	P75                   float64
	PoorCount             int
	NeedsImprovementCount int
}

// VitalStats предоставляет агрегацию web vitals (Domain Service)
type VitalStats struct{}

// NewVitalStats создает новый VitalStats
func NewVitalStats() *VitalStats {
	return &VitalStats{}
}

// Summarize считает все агрегаты за один проход. Пустой набор дает нулевую сводку.
func (s *VitalStats) Summarize(records []*entity.VitalRecord) VitalSummary {
	if len(records) == 0 {
		return VitalSummary{}
	}

	summary := VitalSummary{Count: len(records)}
	summary.Average, _ = s.CalculateAverage(records)
	summary.Min, _ = s.CalculateMin(records)
	summary.Max, _ = s.CalculateMax(records)
	summary.P75, _ = s.CalculatePercentile(records, 75)

	for _, r := range records {
		if r.IsPoor() {
			summary.PoorCount++
		} else if r.NeedsImprovement() {
			summary.NeedsImprovementCount++
		}
	}

	return summary
}

// CalculateAverage вычисляет среднее значение
func (s *VitalStats) CalculateAverage(records []*entity.VitalRecord) (float64, error) {
	if len(records) == 0 {
		return 0, errNoVitals
	}

	var sum float64
	for _, r := range records {
		sum += r.Value()
	}

	return sum / float64(len(records)), nil
}

// CalculateMin находит минимальное значение
func (s *VitalStats) CalculateMin(records []*entity.VitalRecord) (float64, error) {
	if len(records) == 0 {
		return 0, errNoVitals
	}

	min := records[0].Value()
	for _, r := range records[1:] {
		if v := r.Value(); v < min {
			min = v
		}
	}

	return min, nil
}

// CalculateMax находит максимальное значение
func (s *VitalStats) CalculateMax(records []*entity.VitalRecord) (float64, error) {
	if len(records) == 0 {
		return 0, errNoVitals
	}

	max := records[0].Value()
	for _, r := range records[1:] {
		if v := r.Value(); v > max {
			max = v
		}
	}

	return max, nil
}

// CalculatePercentile вычисляет процентиль (nearest-rank по отсортированным значениям)
func (s *VitalStats) CalculatePercentile(records []*entity.VitalRecord, percentile float64) (float64, error) {
	if len(records) == 0 {
		return 0, errNoVitals
	}
	if percentile < 0 || percentile > 100 {
		return 0, errors.New("percentile must be between 0 and 100")
	}

	sorted := s.SortByValue(records)
	index := int(float64(len(sorted)-1) * (percentile / 100.0))

	return sorted[index].Value(), nil
}

// SortByValue сортирует записи по значению по возрастанию
func (s *VitalStats) SortByValue(records []*entity.VitalRecord) []*entity.VitalRecord {
	sorted := make([]*entity.VitalRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value() < sorted[j].Value()
	})

	return sorted
}

// SortByTime сортирует записи по времени начала по возрастанию
func (s *VitalStats) SortByTime(records []*entity.VitalRecord) []*entity.VitalRecord {
	sorted := make([]*entity.VitalRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt().Before(sorted[j].StartedAt())
	})

	return sorted
}
