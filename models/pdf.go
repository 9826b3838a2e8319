package models

import (
	"time"
)

// Document is one ingested disclosure report, keyed by the md5 of its filename
type Document struct {
	ID         string    `bson:"_id" json:"id"`
	Filename   string    `bson:"filename" json:"filename"`
	FullText   string    `bson:"full_text" json:"full_text,omitempty"`
	ChunkCount int       `bson:"chunk_count" json:"chunk_count"`
	ImageCount int       `bson:"image_count" json:"image_count"`
	Language   string    `bson:"language,omitempty" json:"language,omitempty"`
	Status     string    `bson:"status" json:"status"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// Section is a heading-bounded slice of extracted text. Never persisted.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// IngestResult is returned by a successful ingestion
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	ImageCount int    `json:"image_count"`
	Language   string `json:"language"`
	// Embedded counts chunks stored with a usable vector
	Embedded     int               `json:"embedded"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
	ProcessingMS int64             `json:"processing_ms"`
}

// UploadResponse represents the response after an upload request
type UploadResponse struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Status   string        `json:"status"`
	Result   *IngestResult `json:"result,omitempty"`
	Message  string        `json:"message"`
	TaskID   string        `json:"task_id,omitempty"` // For async processing
}

// Document status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
