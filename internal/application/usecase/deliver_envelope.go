package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
	"github.com/google/uuid"
)

// LatestVitalsTTL is how long the latest envelope per URL stays cached.
const LatestVitalsTTL = 24 * time.Hour

// ErrInvalidEnvelope wraps every decoding and validation failure of a delivery.
var ErrInvalidEnvelope = errors.New("invalid envelope")

const (
	deliveryOutcomeStored    = "stored"
	deliveryOutcomeMalformed = "malformed"
	deliveryOutcomeFailed    = "failed"
)

// DeliverEnvelopeResult summarizes what happened to a delivery.
type DeliverEnvelopeResult struct {
	Event      *dto.VitalsEventDTO
	Records    int
	ArchiveURL string
}

// DeliverEnvelopeUseCase принимает envelope от страницы и раздает его по хранилищам и подписчикам
type DeliverEnvelopeUseCase struct {
	repository    repository.VitalRepository
	cache         port.Cache
	publisher     port.EventPublisher
	metrics       port.MetricsPublisher
	archive       port.EnvelopeArchive
	notifier      port.NotificationService
	pipeline      port.PipelineMetrics
	archivePrefix string
	logger        *logger.Logger
	now           func() time.Time
}

// NewDeliverEnvelopeUseCase создает новый use case.
// Все зависимости кроме logger опциональны и могут быть nil.
func NewDeliverEnvelopeUseCase(
	repository repository.VitalRepository,
	cache port.Cache,
	publisher port.EventPublisher,
	metrics port.MetricsPublisher,
	archive port.EnvelopeArchive,
	notifier port.NotificationService,
	pipeline port.PipelineMetrics,
	archivePrefix string,
	logger *logger.Logger,
) *DeliverEnvelopeUseCase {
	if pipeline == nil {
		pipeline = port.NoopPipelineMetrics{}
	}
	if archivePrefix == "" {
		archivePrefix = "envelopes"
	}

	return &DeliverEnvelopeUseCase{
		repository:    repository,
		cache:         cache,
		publisher:     publisher,
		metrics:       metrics,
		archive:       archive,
		notifier:      notifier,
		pipeline:      pipeline,
		archivePrefix: archivePrefix,
		logger:        logger,
		now:           time.Now,
	}
}

var _ port.EnvelopeSink = (*DeliverEnvelopeUseCase)(nil)

// Deliver реализует port.EnvelopeSink
func (uc *DeliverEnvelopeUseCase) Deliver(ctx context.Context, delivery port.Delivery) error {
	_, err := uc.Execute(ctx, delivery)
	return err
}

// Execute декодирует envelope и доставляет его во все настроенные приемники.
// Ошибка возвращается для некорректного envelope и для сбоя основного хранилища;
// остальные приемники только логируют свои ошибки.
func (uc *DeliverEnvelopeUseCase) Execute(ctx context.Context, delivery port.Delivery) (*DeliverEnvelopeResult, error) {
	target := delivery.Target.String()

	// 1. Декодируем и валидируем envelope
	envelope, err := entity.DecodeEnvelope(delivery.Message)
	if err != nil {
		uc.pipeline.DeliveryProcessed(target, deliveryOutcomeMalformed)
		uc.logger.Warn("Rejected envelope", "page_id", delivery.PageID, "target", target, "error", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	receivedAt := uc.now().UTC()
	source := entity.VitalSource{
		PageID: delivery.PageID,
		Tag:    delivery.Tag,
		Target: delivery.Target,
	}

	// 2. Разворачиваем в записи
	records, err := entity.NewVitalRecords(source, envelope, receivedAt)
	if err != nil {
		uc.pipeline.DeliveryProcessed(target, deliveryOutcomeMalformed)
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	// 3. Сохраняем в репозитории
	if uc.repository != nil {
		if err := uc.repository.SaveBatch(ctx, records); err != nil {
			uc.pipeline.DeliveryProcessed(target, deliveryOutcomeFailed)
			uc.logger.Error("Failed to save vitals batch", err, "page_id", delivery.PageID)
			return nil, fmt.Errorf("failed to save vitals: %w", err)
		}
	}

	event := dto.NewVitalsEventDTO(source, envelope, receivedAt)
	result := &DeliverEnvelopeResult{Event: event, Records: len(records)}

	// 4. Обновляем кеш последних значений
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, LatestVitalsCacheKey(envelope.URL), event, LatestVitalsTTL); err != nil {
			uc.logger.Warn("Failed to cache latest vitals", "url", envelope.URL, "error", err.Error())
		}
	}

	// 5. Публикуем в брокер
	if uc.publisher != nil {
		if err := uc.publisher.PublishVitals(ctx, event); err != nil {
			uc.logger.Warn("Failed to publish vitals event", "page_id", delivery.PageID, "error", err.Error())
		}
	}

	// 6. Метрики во внешнюю систему
	if uc.metrics != nil {
		if err := uc.metrics.PublishVitals(ctx, records); err != nil {
			uc.logger.Warn("Failed to publish vitals metrics", "error", err.Error())
		}
	}

	// 7. Архивируем исходное сообщение
	if uc.archive != nil {
		key := uc.buildArchiveKey(delivery.PageID, receivedAt)
		url, err := uc.archive.Archive(ctx, key, []byte(delivery.Message))
		if err != nil {
			uc.logger.Warn("Failed to archive envelope", "key", key, "error", err.Error())
		} else {
			result.ArchiveURL = url
		}
	}

	// 8. Рассылаем через WebSocket
	if uc.notifier != nil {
		uc.notifier.BroadcastVitals(event)
	}

	uc.pipeline.DeliveryProcessed(target, deliveryOutcomeStored)
	uc.logger.Debug("Envelope delivered",
		"page_id", delivery.PageID,
		"target", target,
		"url", envelope.URL,
		"vitals", len(records),
	)

	return result, nil
}

// buildArchiveKey раскладывает архив по странице и дате
func (uc *DeliverEnvelopeUseCase) buildArchiveKey(pageID string, receivedAt time.Time) string {
	if pageID == "" {
		pageID = "unknown"
	}
	timestamp := receivedAt.Format("20060102T150405Z")
	datePrefix := receivedAt.Format("2006/01/02")
	return fmt.Sprintf("%s/%s/%s/%s_%s.json", uc.archivePrefix, pageID, datePrefix, timestamp, uuid.New().String())
}

// LatestVitalsCacheKey returns the cache key holding the last event for a page URL.
func LatestVitalsCacheKey(url string) string {
	return "vitals:latest:" + url
}
