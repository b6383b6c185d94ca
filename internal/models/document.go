package models

import "time"

// DocumentStatus is the lifecycle state of a Document. A document starts in
// StatusProcessing and moves exactly once to a terminal status.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is the tracked record for one uploaded file.
// Field names match the processed_documents table so the same record can live
// in Firestore or Postgres.
type Document struct {
	ID               string         `firestore:"-" json:"id"`
	OriginalFilename string         `firestore:"original_filename" json:"original_filename"`
	FilePath         string         `firestore:"file_path" json:"file_path"`
	ContentType      string         `firestore:"content_type" json:"content_type"`
	Status           DocumentStatus `firestore:"status" json:"status"`
	ProcessedData    *ProcessedData `firestore:"processed_data" json:"processed_data"`
	CreatedAt        time.Time      `firestore:"created_at" json:"created_at"`
	UpdatedAt        *time.Time     `firestore:"updated_at" json:"updated_at"`
}

// ProcessedData is the structured payload attached on completion.
type ProcessedData struct {
	Content  string            `firestore:"content" json:"content"`
	Metadata ProcessedMetadata `firestore:"metadata" json:"metadata"`
	Analysis *LegalAnalysis    `firestore:"analysis,omitempty" json:"analysis,omitempty"`
}

// ProcessedMetadata describes the source file of a ProcessedData payload.
type ProcessedMetadata struct {
	Filename    string    `firestore:"filename" json:"filename"`
	FileType    string    `firestore:"fileType" json:"fileType"`
	ProcessedAt time.Time `firestore:"processedAt" json:"processedAt"`
	PageCount   int       `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	SizeBytes   int64     `firestore:"sizeBytes" json:"sizeBytes"`
	Checksum    string    `firestore:"checksum,omitempty" json:"checksum,omitempty"`
	SourceURL   string    `firestore:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
}
