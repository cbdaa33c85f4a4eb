package port

import (
	"context"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
)

// EventPublisher publishes delivered vitals to a message broker
type EventPublisher interface {
	// PublishVitals publishes one event per metric kind found in the envelope
	PublishVitals(ctx context.Context, event *dto.VitalsEventDTO) error

	// Close closes the connection to the message broker
	Close() error
}
