package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/service"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/transport"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
	"github.com/google/uuid"
)

// StartupBanner is written to the page console when a session starts.
const StartupBanner = "web vitals support started"

// collectedEntryTypes are subscribed in this order, all with buffered replay.
var collectedEntryTypes = []string{
	valueobject.EntryTypeFirstInput,
	valueobject.EntryTypeLargestContentfulPaint,
	valueobject.EntryTypeLayoutShift,
	valueobject.EntryTypePaint,
}

var ErrSessionStarted = errors.New("page session already started")

type observedBatch struct {
	entryType string
	entries   []entity.RawTimingEntry
}

// PageSession instruments one page: it resolves the delivery target once,
// subscribes the FID, FCP, LCP and CLS collectors and forwards every emitted
// envelope to the host. All batches are handled on a single goroutine, which
// is the only writer of the CLS state.
type PageSession struct {
	id         string
	env        port.Environment
	observer   port.Observer
	target     valueobject.DeliveryTarget
	transport  port.Transport
	normalizer *service.MetricNormalizer
	cls        *service.CLSAggregator
	metrics    port.PipelineMetrics
	logger     *logger.Logger

	startOnce sync.Once
	started   bool
	done      chan struct{}
}

// NewPageSession создает сессию; metrics может быть nil
func NewPageSession(
	id string,
	env port.Environment,
	observer port.Observer,
	metrics port.PipelineMetrics,
	logger *logger.Logger,
) *PageSession {
	if id == "" {
		id = uuid.New().String()
	}
	if metrics == nil {
		metrics = port.NoopPipelineMetrics{}
	}

	s := &PageSession{
		id:         id,
		env:        env,
		observer:   observer,
		target:     service.ResolvePlatform(env),
		normalizer: service.NewMetricNormalizer(env),
		cls:        service.NewCLSAggregator(),
		metrics:    metrics,
		logger:     logger,
		done:       make(chan struct{}),
	}
	s.transport = transport.New(s.target, env, s.onTransportFallback)

	return s
}

func (s *PageSession) ID() string {
	return s.id
}

// Target returns the delivery target resolved at construction.
func (s *PageSession) Target() valueobject.DeliveryTarget {
	return s.target
}

// Start subscribes the collectors and starts the event loop.
// The loop runs until ctx is cancelled or every subscription closes.
func (s *PageSession) Start(ctx context.Context) error {
	err := ErrSessionStarted
	s.startOnce.Do(func() {
		err = s.start(ctx)
	})
	return err
}

func (s *PageSession) start(ctx context.Context) error {
	streams := make([]<-chan []entity.RawTimingEntry, len(collectedEntryTypes))
	for i, entryType := range collectedEntryTypes {
		stream, err := s.observer.Observe(ctx, entryType, true)
		if err != nil {
			close(s.done)
			return fmt.Errorf("failed to observe %s: %w", entryType, err)
		}
		streams[i] = stream
	}

	s.env.Console().Log(StartupBanner)
	s.logger.Info("Page session started",
		"session_id", s.id,
		"target", s.target.String(),
		"url", s.env.URL(),
	)

	batches := make(chan observedBatch)
	var wg sync.WaitGroup
	for i, stream := range streams {
		wg.Add(1)
		go func(entryType string, stream <-chan []entity.RawTimingEntry) {
			defer wg.Done()
			for entries := range stream {
				select {
				case batches <- observedBatch{entryType: entryType, entries: entries}:
				case <-ctx.Done():
					return
				}
			}
		}(collectedEntryTypes[i], stream)
	}

	go func() {
		wg.Wait()
		close(batches)
	}()

	go func() {
		defer close(s.done)
		for batch := range batches {
			s.handle(batch.entryType, batch.entries)
		}
		s.logger.Debug("Page session stopped", "session_id", s.id)
	}()

	return nil
}

// Done is closed when the event loop has exited.
func (s *PageSession) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the event loop exits or ctx ends.
func (s *PageSession) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle runs one batch to completion. It must only be called from the event loop.
func (s *PageSession) handle(entryType string, entries []entity.RawTimingEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Vitals batch handler panicked", fmt.Errorf("%v", r),
				"session_id", s.id,
				"entry_type", entryType,
			)
		}
	}()

	s.metrics.BatchObserved(entryType, len(entries))

	if entryType == valueobject.EntryTypeLayoutShift {
		s.cls.Process(entries, s.post)
		return
	}

	s.post(entries)
}

// post normalizes a batch and hands it to the transport. Errors end here.
func (s *PageSession) post(entries []entity.RawTimingEntry) {
	result, err := s.normalizer.Normalize(entries)
	for _, dropped := range result.Dropped {
		s.logger.Warn("Dropping timeline entry", "session_id", s.id, "error", dropped.Error())
	}
	if len(result.Dropped) > 0 {
		s.metrics.EntryDropped("unmapped_entry_type", len(result.Dropped))
	}

	if err != nil {
		if errors.Is(err, entity.ErrMalformedInput) {
			s.logger.Error("Vitals batch is not a sequence, it is not possible to parse", err, "session_id", s.id)
			s.metrics.EntryDropped("malformed_input", 1)
			return
		}
		s.logger.Debug("Nothing to send for batch", "session_id", s.id, "error", err.Error())
		return
	}

	message, err := result.Envelope.Encode()
	if err != nil {
		s.logger.Error("Failed to encode envelope", err, "session_id", s.id)
		return
	}

	s.transport.Send(message)
	s.metrics.EnvelopeSent(s.target.String())
}

func (s *PageSession) onTransportFallback(target valueobject.DeliveryTarget, err error) {
	s.metrics.TransportFallback(target.String())
	s.logger.Debug("Bridge missing, falling back to console",
		"session_id", s.id,
		"target", target.String(),
		"error", err.Error(),
	)
}
