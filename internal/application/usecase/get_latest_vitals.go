package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// ErrVitalsNotFound means nothing was delivered yet for the requested page.
var ErrVitalsNotFound = errors.New("no vitals for url")

// GetLatestVitalsUseCase возвращает последний envelope страницы: сначала из кеша, затем из БД
type GetLatestVitalsUseCase struct {
	repository repository.VitalRepository
	cache      port.Cache
	logger     *logger.Logger
}

// NewGetLatestVitalsUseCase создает новый use case; cache может быть nil
func NewGetLatestVitalsUseCase(
	repository repository.VitalRepository,
	cache port.Cache,
	logger *logger.Logger,
) *GetLatestVitalsUseCase {
	return &GetLatestVitalsUseCase{
		repository: repository,
		cache:      cache,
		logger:     logger,
	}
}

// Execute возвращает последние метрики страницы
func (uc *GetLatestVitalsUseCase) Execute(ctx context.Context, url string) ([]*dto.VitalDTO, error) {
	if url == "" {
		return nil, errors.New("url is required")
	}

	if uc.cache != nil {
		var event dto.VitalsEventDTO
		err := uc.cache.Get(ctx, LatestVitalsCacheKey(url), &event)
		if err == nil {
			uc.logger.Debug("Cache hit for latest vitals", "url", url)
			return dto.FromVitalsEvent(&event), nil
		}
		if !errors.Is(err, port.ErrCacheMiss) {
			uc.logger.Warn("Failed to read latest vitals from cache", "url", url, "error", err.Error())
		}
	}

	if uc.repository == nil {
		return nil, ErrVitalsNotFound
	}

	records, err := uc.repository.FindLatestByURL(ctx, url)
	if err != nil {
		uc.logger.Error("Failed to fetch latest vitals", err, "url", url)
		return nil, fmt.Errorf("failed to fetch latest vitals: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrVitalsNotFound
	}

	return dto.ToVitalDTOs(records), nil
}
