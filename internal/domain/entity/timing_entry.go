package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawTimingEntry is one performance timeline record as the page reports it.
// Optional fields are nil when the entry type does not carry them.
type RawTimingEntry struct {
	Name            string              `json:"name"`
	EntryType       string              `json:"entryType"`
	StartTime       float64             `json:"startTime"`
	Duration        float64             `json:"duration"`
	Value           *float64            `json:"value,omitempty"`
	ProcessingStart *float64            `json:"processingStart,omitempty"`
	HadRecentInput  bool                `json:"hadRecentInput,omitempty"`
	Sources         []LayoutShiftSource `json:"sources,omitempty"`
}

// LayoutShiftSource describes an element that moved during a layout shift.
type LayoutShiftSource struct {
	Node         string  `json:"node,omitempty"`
	PreviousRect DOMRect `json:"previousRect"`
	CurrentRect  DOMRect `json:"currentRect"`
}

type DOMRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Clone returns a copy that shares no memory with e.
func (e RawTimingEntry) Clone() RawTimingEntry {
	clone := e
	if e.Value != nil {
		clone.Value = Float64(*e.Value)
	}
	if e.ProcessingStart != nil {
		clone.ProcessingStart = Float64(*e.ProcessingStart)
	}
	if e.Sources != nil {
		clone.Sources = make([]LayoutShiftSource, len(e.Sources))
		copy(clone.Sources, e.Sources)
	}
	return clone
}

// ScoreValue returns the layout-shift score, zero when absent.
func (e RawTimingEntry) ScoreValue() float64 {
	if e.Value == nil {
		return 0
	}
	return *e.Value
}

// CloneEntries copies a batch entry by entry. A nil batch stays nil.
func CloneEntries(entries []RawTimingEntry) []RawTimingEntry {
	if entries == nil {
		return nil
	}
	clones := make([]RawTimingEntry, len(entries))
	for i, entry := range entries {
		clones[i] = entry.Clone()
	}
	return clones
}

// DecodeBatch parses a JSON array of timeline entries.
// Anything other than an array (null included) is malformed input.
func DecodeBatch(raw []byte) ([]RawTimingEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: entries must be an array", ErrMalformedInput)
	}

	entries := make([]RawTimingEntry, 0)
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	return entries, nil
}

func Float64(v float64) *float64 {
	return &v
}
