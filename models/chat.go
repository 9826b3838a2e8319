// models/chat.go
package models

// Confidence levels an answer may carry
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps model output onto a known level. Unknown values become medium.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return Confidence(s)
	default:
		return ConfidenceMedium
	}
}

// AskRequest is a question against the stored documents
type AskRequest struct {
	Question  string `json:"question" binding:"required,min=1,max=2000"`
	MaxChunks int    `json:"max_chunks,omitempty"`
}

// Answer is always structurally valid, even when generation failed
type Answer struct {
	Answer     string     `json:"answer"`
	Sources    []string   `json:"sources"`
	Confidence Confidence `json:"confidence"`
	Images     []Image    `json:"images"`
	ChunksUsed int        `json:"chunks_used"`
}
