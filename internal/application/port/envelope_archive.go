package port

import (
	"context"
	"time"
)

// ArchivedEnvelope is one raw envelope kept in object storage.
type ArchivedEnvelope struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url,omitempty"`
}

// EnvelopeArchive stores raw envelope messages as they were received.
type EnvelopeArchive interface {
	// Archive writes body under key and returns a URL for reading it back.
	Archive(ctx context.Context, key string, body []byte) (string, error)

	// List returns the newest archived envelopes under prefix, newest first.
	List(ctx context.Context, prefix string, limit int) ([]ArchivedEnvelope, error)
}
