package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
	"github.com/dreschagin/vitals-bridge/internal/domain/service"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// HistoryCacheTTL keeps aggregated history short-lived; new deliveries keep coming.
const HistoryCacheTTL = 30 * time.Second

// ErrInvalidQuery wraps request validation failures.
var ErrInvalidQuery = errors.New("invalid query")

// GetVitalsHistoryUseCase возвращает историю метрик с агрегатами и кешированием
type GetVitalsHistoryUseCase struct {
	repository  repository.VitalRepository
	stats       *service.VitalStats
	cache       port.Cache
	maxDuration time.Duration
	logger      *logger.Logger
}

// NewGetVitalsHistoryUseCase создает новый use case; cache может быть nil
func NewGetVitalsHistoryUseCase(
	repository repository.VitalRepository,
	stats *service.VitalStats,
	cache port.Cache,
	maxDuration time.Duration,
	logger *logger.Logger,
) *GetVitalsHistoryUseCase {
	return &GetVitalsHistoryUseCase{
		repository:  repository,
		stats:       stats,
		cache:       cache,
		maxDuration: maxDuration,
		logger:      logger,
	}
}

// Execute выполняет выборку за последние duration по полученному времени
func (uc *GetVitalsHistoryUseCase) Execute(
	ctx context.Context,
	kind valueobject.MetricKind,
	url string,
	duration time.Duration,
) (*dto.VitalHistoryDTO, error) {
	// Валидация типа метрики
	if err := kind.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if uc.maxDuration > 0 && duration > uc.maxDuration {
		return nil, fmt.Errorf("%w: duration %s exceeds %s", ErrInvalidQuery, duration, uc.maxDuration)
	}

	timeRange, err := valueobject.NewTimeRangeFromDuration(time.Now().UTC(), duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	// Если кеш не настроен, используем стандартный путь
	if uc.cache == nil {
		return uc.fetch(ctx, kind, url, timeRange)
	}

	cacheKey := HistoryCacheKey(kind, url, duration)

	var cached dto.VitalHistoryDTO
	if err := uc.cache.Get(ctx, cacheKey, &cached); err == nil {
		uc.logger.Debug("Cache hit for vitals history", "kind", kind.String(), "url", url)
		return &cached, nil
	}

	history, err := uc.fetch(ctx, kind, url, timeRange)
	if err != nil {
		return nil, err
	}

	// Сохраняем в кеш (асинхронно, не блокируем ответ)
	go func() {
		if err := uc.cache.Set(context.Background(), cacheKey, history, HistoryCacheTTL); err != nil {
			uc.logger.Warn("Failed to cache vitals history", "error", err.Error())
		}
	}()

	return history, nil
}

func (uc *GetVitalsHistoryUseCase) fetch(
	ctx context.Context,
	kind valueobject.MetricKind,
	url string,
	timeRange valueobject.TimeRange,
) (*dto.VitalHistoryDTO, error) {
	records, err := uc.repository.Find(ctx, repository.VitalQuery{
		Kind:      kind,
		TimeRange: timeRange,
		URL:       url,
	})
	if err != nil {
		uc.logger.Error("Failed to fetch vitals history", err)
		return nil, fmt.Errorf("failed to fetch vitals history: %w", err)
	}

	uc.logger.Debug("Fetched vitals history", "kind", kind.String(), "count", len(records))

	sorted := uc.stats.SortByTime(records)
	return dto.NewVitalHistoryDTO(kind.String(), url, sorted, uc.stats.Summarize(sorted)), nil
}

// HistoryCacheKey строит ключ кеша для агрегированной истории
func HistoryCacheKey(kind valueobject.MetricKind, url string, duration time.Duration) string {
	return fmt.Sprintf("vitals:history:%s:%s:%s", kind.String(), duration.String(), url)
}
