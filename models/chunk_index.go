package models

import "time"

// Chunk is a bounded retrieval unit belonging to exactly one Document.
// Filename is denormalized so retrieval can label context without a join.
type Chunk struct {
	DocumentID string    `bson:"document_id" json:"document_id"`
	Index      int       `bson:"chunk_index" json:"chunk_index"`
	Heading    string    `bson:"heading" json:"heading"`
	Text       string    `bson:"text" json:"text"`
	Filename   string    `bson:"filename" json:"filename"`
	Embedding  []float32 `bson:"embedding,omitempty" json:"-"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Searchable reports whether the chunk carries a usable embedding
func (c Chunk) Searchable() bool {
	return len(c.Embedding) > 0
}

// ScoredChunk is a chunk returned by a similarity match
type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// RetrievalResult is one ranked hit enriched with the images of its document
type RetrievalResult struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
	Images     []Image `json:"images"`
}
