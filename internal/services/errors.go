package services

import "errors"

var (
	// ErrNoFile is returned when a submission carries no file.
	ErrNoFile = errors.New("no file uploaded")
	// ErrProcessingPanicked wraps a panic recovered while processing a document.
	ErrProcessingPanicked = errors.New("document processing panicked")

	ErrStoreRequired      = errors.New("record store is required")
	ErrBlobStoreRequired  = errors.New("blob store is required")
	ErrExtractorRequired  = errors.New("text extractor is required")
	ErrDispatcherRequired = errors.New("dispatcher is required")
)
