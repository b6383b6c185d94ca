package models

import "time"

// These structs define the JSON payloads exchanged with clients, schedulers
// and event sources.

// UploadResponse acknowledges an admitted upload.
type UploadResponse struct {
	Message  string `json:"message"`
	FilePath string `json:"filePath"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SweepResponse is the output of the stale-document sweep function.
type SweepResponse struct {
	FailedCount int `json:"failedCount"`
}

// GCSEvent is the data payload of a storage object.finalized CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// DocumentFinalizedEvent is handed to downstream consumers after a document
// reaches a terminal status.
type DocumentFinalizedEvent struct {
	DocumentID       string         `json:"documentId"`
	FilePath         string         `json:"filePath"`
	OriginalFilename string         `json:"originalFilename"`
	ContentType      string         `json:"contentType"`
	Status           DocumentStatus `json:"status"`
	FinalizedAt      time.Time      `json:"finalizedAt"`
}

// NewDocumentFinalizedEvent builds the hand-off payload for doc.
func NewDocumentFinalizedEvent(doc *Document) DocumentFinalizedEvent {
	ev := DocumentFinalizedEvent{
		DocumentID:       doc.ID,
		FilePath:         doc.FilePath,
		OriginalFilename: doc.OriginalFilename,
		ContentType:      doc.ContentType,
		Status:           doc.Status,
	}
	if doc.UpdatedAt != nil {
		ev.FinalizedAt = *doc.UpdatedAt
	}
	return ev
}
