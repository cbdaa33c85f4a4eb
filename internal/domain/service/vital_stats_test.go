package service

import (
	"testing"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

func lcpRecord(duration int64, startedAt time.Time) *entity.VitalRecord {
	return entity.ReconstructVitalRecord("id", "page", "tag", valueobject.Android,
		"https://shop.example/", valueobject.LCP, "largest-contentful-paint",
		startedAt, duration, nil, startedAt)
}

func TestVitalStats_Summarize(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*entity.VitalRecord{
		lcpRecord(1200, base),
		lcpRecord(4500, base.Add(time.Second)),
		lcpRecord(3000, base.Add(2*time.Second)),
		lcpRecord(2000, base.Add(3*time.Second)),
	}

	summary := NewVitalStats().Summarize(records)

	if summary.Count != 4 {
		t.Fatalf("Count = %d, want 4", summary.Count)
	}
	if summary.Average != 2675 {
		t.Fatalf("Average = %v, want 2675", summary.Average)
	}
	if summary.Min != 1200 || summary.Max != 4500 {
		t.Fatalf("Min/Max = %v/%v, want 1200/4500", summary.Min, summary.Max)
	}
	// nearest-rank: index int(3*0.75) = 2 → 3000
	if summary.P75 != 3000 {
		t.Fatalf("P75 = %v, want 3000", summary.P75)
	}
	if summary.PoorCount != 1 || summary.NeedsImprovementCount != 1 {
		t.Fatalf("Poor/NeedsImprovement = %d/%d, want 1/1", summary.PoorCount, summary.NeedsImprovementCount)
	}
}

func TestVitalStats_Empty(t *testing.T) {
	stats := NewVitalStats()

	if summary := stats.Summarize(nil); summary != (VitalSummary{}) {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
	if _, err := stats.CalculateAverage(nil); err == nil {
		t.Fatal("expected error for empty average")
	}
	if _, err := stats.CalculatePercentile([]*entity.VitalRecord{lcpRecord(1, time.Now())}, 101); err == nil {
		t.Fatal("expected error for percentile out of range")
	}
}

func TestVitalStats_SortByTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	late := lcpRecord(100, base.Add(time.Minute))
	early := lcpRecord(200, base)
	records := []*entity.VitalRecord{late, early}

	sorted := NewVitalStats().SortByTime(records)
	if sorted[0] != early || sorted[1] != late {
		t.Fatal("records not sorted by start time")
	}
	if records[0] != late {
		t.Fatal("input slice was reordered")
	}
}
