package entity

import "errors"

var (
	// ErrMalformedInput is returned when a batch or envelope is not a well-formed sequence.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyBatch is returned when there is nothing to normalize or deliver.
	ErrEmptyBatch = errors.New("empty batch")
)
