package remotepage

import (
	"encoding/json"
	"fmt"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
)

const (
	FrameHello   = "hello"
	FrameEntries = "entries"
	FrameError   = "error"
	FrameReady   = "ready"
)

// ErrorFrame is sent back to the agent when a frame is rejected.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ReadyFrame acknowledges the hello frame.
type ReadyFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Target    string `json:"target"`
}

type envelopeFrame struct {
	Type string `json:"type"`
}

type helloFrame struct {
	Type string `json:"type"`
	Hello
}

type entriesFrame struct {
	Type    string          `json:"type"`
	Entries json.RawMessage `json:"entries"`
}

// FrameType returns the "type" of a frame.
func FrameType(data []byte) (string, error) {
	var frame envelopeFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrMalformedInput, err)
	}
	return frame.Type, nil
}

// ParseHello decodes and validates the first frame of a connection.
func ParseHello(data []byte) (Hello, error) {
	var frame helloFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Hello{}, fmt.Errorf("%w: %v", ErrInvalidHello, err)
	}
	if frame.Type != FrameHello {
		return Hello{}, fmt.Errorf("%w: expected %q frame, got %q", ErrInvalidHello, FrameHello, frame.Type)
	}
	if err := frame.Hello.Validate(); err != nil {
		return Hello{}, fmt.Errorf("%w: %v", ErrInvalidHello, err)
	}
	return frame.Hello, nil
}

// ParseEntries decodes an entries frame. A missing or non-array
// "entries" field is malformed input.
func ParseEntries(data []byte) ([]entity.RawTimingEntry, error) {
	var frame entriesFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrMalformedInput, err)
	}
	if frame.Type != FrameEntries {
		return nil, fmt.Errorf("%w: unexpected frame %q", entity.ErrMalformedInput, frame.Type)
	}
	return entity.DecodeBatch(frame.Entries)
}
