package entity

import (
	"encoding/json"
	"fmt"

	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// MetricKey tags every normalized metric on the wire.
const MetricKey = "EMBRACE_METRIC"

// NormalizedMetric is the compact wire form of one timeline entry.
type NormalizedMetric struct {
	Key            string                 `json:"key"`
	Name           string                 `json:"n"`
	Kind           valueobject.MetricKind `json:"t"`
	StartTimestamp int64                  `json:"st"`
	Duration       int64                  `json:"d"`
	// Score is set only for layout shifts; nil is omitted, zero is kept.
	Score *float64 `json:"s,omitempty"`
}

// Envelope is the unit handed to the host as a single string.
type Envelope struct {
	Timestamp int64              `json:"ts"`
	URL       string             `json:"u"`
	Vitals    []NormalizedMetric `json:"vt"`
}

// Encode serializes the envelope to its wire string.
func (e Envelope) Encode() (string, error) {
	if len(e.Vitals) == 0 {
		return "", ErrEmptyBatch
	}

	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(data), nil
}

// Kinds returns the distinct metric kinds in the envelope, in first-seen order.
func (e Envelope) Kinds() []valueobject.MetricKind {
	seen := make(map[valueobject.MetricKind]struct{}, len(e.Vitals))
	kinds := make([]valueobject.MetricKind, 0, len(e.Vitals))
	for _, v := range e.Vitals {
		if _, ok := seen[v.Kind]; ok {
			continue
		}
		seen[v.Kind] = struct{}{}
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

// DecodeEnvelope parses a wire string back into an Envelope.
func DecodeEnvelope(message string) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal([]byte(message), &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if envelope.Vitals == nil {
		return Envelope{}, fmt.Errorf("%w: vt is missing", ErrMalformedInput)
	}
	if len(envelope.Vitals) == 0 {
		return Envelope{}, ErrEmptyBatch
	}

	for i, v := range envelope.Vitals {
		if v.Key != MetricKey {
			return Envelope{}, fmt.Errorf("%w: vt[%d] has key %q", ErrMalformedInput, i, v.Key)
		}
		if err := v.Kind.Validate(); err != nil {
			return Envelope{}, fmt.Errorf("%w: vt[%d]: %v", ErrMalformedInput, i, err)
		}
	}

	return envelope, nil
}
