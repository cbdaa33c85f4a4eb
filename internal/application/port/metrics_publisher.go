package port

import (
	"context"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
)

// MetricsPublisher publishes vitals to an external metrics platform.
type MetricsPublisher interface {
	// PublishVitals buffers one datum per record.
	// Implementations handle request size limits themselves.
	PublishVitals(ctx context.Context, records []*entity.VitalRecord) error

	// Flush forces immediate publication of any buffered data.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}
