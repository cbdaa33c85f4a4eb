package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "vitals"

// NATSPublisher implements EventPublisher for NATS JetStream
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
	logger *logger.Logger
}

var _ port.EventPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher creates a new NATS publisher
func NewNATSPublisher(natsURL, subjectPrefix string, log *logger.Logger) (*NATSPublisher, error) {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}

	// Connect to NATS with retry
	nc, err := nats.Connect(natsURL,
		nats.Name("vitals-bridge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Get JetStream context
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	log.Info("Connected to NATS", "url", natsURL, "subject_prefix", subjectPrefix)

	return &NATSPublisher{
		nc:     nc,
		js:     js,
		prefix: subjectPrefix,
		logger: log,
	}, nil
}

// PublishVitals publishes the event once per metric kind it carries,
// so consumers can subscribe to e.g. "vitals.CLS" only.
func (p *NATSPublisher) PublishVitals(ctx context.Context, event *dto.VitalsEventDTO) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, kind := range event.Kinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		subject := Subject(p.prefix, kind)

		// Async publish (fire-and-forget for better performance)
		if _, err := p.js.PublishAsync(subject, data); err != nil {
			p.logger.Error("Failed to publish event", err, "subject", subject)
			return fmt.Errorf("failed to publish event to %s: %w", subject, err)
		}

		p.logger.Debug("Event published", "subject", subject, "size", len(data))
	}

	return nil
}

// Close waits briefly for pending async publishes and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	p.logger.Info("Closing NATS connection")
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		p.logger.Warn("Timed out waiting for pending NATS publishes")
	}
	p.nc.Close()
	return nil
}

// Subject returns the subject for one metric kind.
func Subject(prefix, kind string) string {
	return prefix + "." + kind
}
