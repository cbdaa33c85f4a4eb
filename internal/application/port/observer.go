package port

import (
	"context"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
)

// Observer is the page's performance-observation facility.
type Observer interface {
	// Observe subscribes to one entry type. With buffered set, entries recorded
	// before the call are replayed as the first batch. Batches arrive in the order
	// they were recorded; the channel closes when ctx ends or the observer closes.
	Observe(ctx context.Context, entryType string, buffered bool) (<-chan []entity.RawTimingEntry, error)
}
