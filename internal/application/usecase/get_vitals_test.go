package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/service"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

func clsRecord(score float64, startedAt time.Time) *entity.VitalRecord {
	return entity.ReconstructVitalRecord("id", "page", "tag", valueobject.Android,
		"https://shop.example/", valueobject.CLS, "layout-shift",
		startedAt, 0, entity.Float64(score), startedAt)
}

func TestGetLatestVitalsUseCase_CacheHit(t *testing.T) {
	repo := &mockRepository{}
	cache := newMockCache()
	envelope, err := entity.DecodeEnvelope(testEnvelopeMessage)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	event := dto.NewVitalsEventDTO(entity.VitalSource{PageID: "p", Target: valueobject.IOS}, envelope, time.Now().UTC())
	if err := cache.Set(context.Background(), LatestVitalsCacheKey(envelope.URL), event, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	uc := NewGetLatestVitalsUseCase(repo, cache, testLogger())
	vitals, err := uc.Execute(context.Background(), envelope.URL)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(vitals) != 2 || vitals[0].Kind != "FCP" || vitals[1].Kind != "CLS" {
		t.Fatalf("unexpected vitals: %+v", vitals)
	}
	if vitals[1].Score == nil || *vitals[1].Score != 0.3 || !vitals[1].IsPoor {
		t.Fatalf("CLS not reconstructed from cache: %+v", vitals[1])
	}
	if vitals[0].Target != "IOS" {
		t.Fatalf("Target = %s, want IOS", vitals[0].Target)
	}
	if repo.latestCall != 0 {
		t.Fatal("repository must not be queried on cache hit")
	}
}

func TestGetLatestVitalsUseCase_FallsBackToRepository(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name     string
		cache    *mockCache
		repo     *mockRepository
		url      string
		wantErr  error
		wantLen  int
		anyError bool
	}{
		{name: "cache miss", cache: newMockCache(), repo: &mockRepository{latest: []*entity.VitalRecord{clsRecord(0.1, now)}}, url: "https://shop.example/", wantLen: 1},
		{name: "cache error", cache: &mockCache{getErr: errors.New("timeout")}, repo: &mockRepository{latest: []*entity.VitalRecord{clsRecord(0.1, now)}}, url: "https://shop.example/", wantLen: 1},
		{name: "not found", cache: newMockCache(), repo: &mockRepository{}, url: "https://nowhere/", wantErr: ErrVitalsNotFound},
		{name: "repository error", cache: newMockCache(), repo: &mockRepository{latestErr: errors.New("db down")}, url: "https://shop.example/", anyError: true},
		{name: "empty url", cache: newMockCache(), repo: &mockRepository{}, url: "", anyError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewGetLatestVitalsUseCase(tt.repo, tt.cache, testLogger())
			vitals, err := uc.Execute(context.Background(), tt.url)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyError:
				if err == nil {
					t.Fatal("expected error")
				}
			default:
				if err != nil {
					t.Fatalf("Execute() error = %v", err)
				}
				if len(vitals) != tt.wantLen {
					t.Fatalf("len = %d, want %d", len(vitals), tt.wantLen)
				}
			}
		})
	}
}

func TestGetVitalsHistoryUseCase_Validation(t *testing.T) {
	uc := NewGetVitalsHistoryUseCase(&mockRepository{}, service.NewVitalStats(), nil, 24*time.Hour, testLogger())

	tests := []struct {
		name     string
		kind     valueobject.MetricKind
		duration time.Duration
	}{
		{name: "unknown kind", kind: valueobject.MetricKind("TTFB"), duration: time.Hour},
		{name: "too long", kind: valueobject.LCP, duration: 48 * time.Hour},
		{name: "zero duration", kind: valueobject.LCP, duration: 0},
		{name: "negative duration", kind: valueobject.FID, duration: -time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := uc.Execute(context.Background(), tt.kind, "", tt.duration); !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("Execute() error = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestGetVitalsHistoryUseCase_SummaryAndCache(t *testing.T) {
	base := time.Now().UTC().Add(-10 * time.Minute)
	repo := &mockRepository{findResult: []*entity.VitalRecord{
		clsRecord(0.3, base.Add(2*time.Minute)),
		clsRecord(0.05, base),
		clsRecord(0.15, base.Add(time.Minute)),
	}}
	cache := newMockCache()
	uc := NewGetVitalsHistoryUseCase(repo, service.NewVitalStats(), cache, 24*time.Hour, testLogger())

	history, err := uc.Execute(context.Background(), valueobject.CLS, "https://shop.example/", time.Hour)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if history.Count != 3 || history.PoorCount != 1 || history.NeedsImprovementCount != 1 {
		t.Fatalf("unexpected summary: %+v", history)
	}
	if history.Max != 0.3 || history.Min != 0.05 {
		t.Fatalf("Min/Max = %v/%v", history.Min, history.Max)
	}
	if *history.Vitals[0].Score != 0.05 || *history.Vitals[2].Score != 0.3 {
		t.Fatal("history must be sorted by start time")
	}
	if repo.lastQuery.Kind != valueobject.CLS || repo.lastQuery.URL != "https://shop.example/" {
		t.Fatalf("unexpected query: %+v", repo.lastQuery)
	}
	if repo.lastQuery.TimeRange.Duration() != time.Hour {
		t.Fatalf("query range = %v, want 1h", repo.lastQuery.TimeRange.Duration())
	}

	key := HistoryCacheKey(valueobject.CLS, "https://shop.example/", time.Hour)
	if key != "vitals:history:CLS:1h0m0s:https://shop.example/" {
		t.Fatalf("HistoryCacheKey() = %s", key)
	}
	waitFor(t, "history cached", func() bool { return cache.has(key) })

	cached, err := uc.Execute(context.Background(), valueobject.CLS, "https://shop.example/", time.Hour)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if cached.Count != 3 {
		t.Fatalf("cached Count = %d, want 3", cached.Count)
	}
	if repo.findCalls != 1 {
		t.Fatalf("repository Find calls = %d, want 1", repo.findCalls)
	}
}
