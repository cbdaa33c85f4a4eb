package port

import (
	"context"

	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// Delivery is one envelope string as received by the host.
type Delivery struct {
	PageID  string
	Tag     string
	Target  valueobject.DeliveryTarget
	Message string
}

// EnvelopeSink accepts envelope strings handed over by a page transport.
type EnvelopeSink interface {
	Deliver(ctx context.Context, delivery Delivery) error
}
