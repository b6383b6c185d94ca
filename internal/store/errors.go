package store

import "errors"

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyFinalized is returned when a terminal update targets a record
	// that has already left the processing status.
	ErrAlreadyFinalized = errors.New("document already finalized")
	// ErrInvalidDocument is returned by Create for records missing required fields.
	ErrInvalidDocument = errors.New("invalid document")
)
