package database

import (
	"context"
	"errors"
	"math"
	"sort"

	"disclosure-rag/models"
)

var ErrDocumentNotFound = errors.New("document not found")

// Backend is the persistence contract behind the store adapter. Deleting a
// document is not cascaded here; callers remove chunks and images first.
type Backend interface {
	Name() string

	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteChunks(ctx context.Context, documentID string) (int64, error)
	CountChunks(ctx context.Context, documentID string) (int64, error)

	InsertImages(ctx context.Context, images []models.Image) error
	DeleteImages(ctx context.Context, documentID string) (int64, error)
	ImagesByDocument(ctx context.Context, documentID string) ([]models.Image, error)

	// MatchChunks returns at most limit chunks whose cosine similarity to the
	// embedding is >= threshold, ordered by similarity descending and then by
	// insertion order. Chunks without an embedding never match.
	MatchChunks(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.ScoredChunk, error)
}

// CosineSimilarity returns 0 for mismatched dimensions or zero vectors
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankChunks scores chunks given in insertion order and applies the match contract
func rankChunks(chunks []models.Chunk, embedding []float32, threshold float64, limit int) []models.ScoredChunk {
	if limit <= 0 || len(embedding) == 0 {
		return []models.ScoredChunk{}
	}

	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.Searchable() {
			continue
		}
		sim := CosineSimilarity(embedding, c.Embedding)
		if sim < threshold {
			continue
		}
		scored = append(scored, models.ScoredChunk{Chunk: c, Similarity: sim})
	}

	// Stable keeps insertion order among equal scores
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
