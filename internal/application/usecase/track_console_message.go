package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// ErrNotAnEnvelope means a console message is ordinary page output.
var ErrNotAnEnvelope = errors.New("console message is not a vitals envelope")

// TrackConsoleMessageUseCase inspects console messages forwarded by an Android
// WebView and delivers the ones that carry vitals envelopes.
type TrackConsoleMessageUseCase struct {
	deliver *DeliverEnvelopeUseCase
	logger  *logger.Logger
}

func NewTrackConsoleMessageUseCase(deliver *DeliverEnvelopeUseCase, logger *logger.Logger) *TrackConsoleMessageUseCase {
	return &TrackConsoleMessageUseCase{
		deliver: deliver,
		logger:  logger,
	}
}

// Execute returns ErrNotAnEnvelope for ordinary console output.
func (uc *TrackConsoleMessageUseCase) Execute(ctx context.Context, tag, message string) (*DeliverEnvelopeResult, error) {
	if !IsVitalsMessage(message) {
		return nil, ErrNotAnEnvelope
	}

	uc.logger.Debug("Tracking WebView performance message", "tag", tag)

	return uc.deliver.Execute(ctx, port.Delivery{
		PageID:  tag,
		Tag:     tag,
		Target:  valueobject.Android,
		Message: message,
	})
}

// IsVitalsMessage reports whether a console line looks like an envelope.
func IsVitalsMessage(message string) bool {
	trimmed := strings.TrimSpace(message)
	return strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, entity.MetricKey)
}
