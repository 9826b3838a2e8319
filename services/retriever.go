package services

import (
	"context"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/models"
)

// Retriever finds the chunks relevant to a question and attaches the images
// of each chunk's document
type Retriever struct {
	store     *StoreAdapter
	threshold float64
}

func NewRetriever(store *StoreAdapter, cfg *config.Config) *Retriever {
	return &Retriever{store: store, threshold: cfg.MatchThreshold}
}

// Retrieve never fails: backend errors are logged and yield no results
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) []models.RetrievalResult {
	results := []models.RetrievalResult{}

	matches, err := r.store.SearchSimilar(ctx, question, k, r.threshold)
	if err != nil {
		logger.Error("Similarity search failed", "error", err)
		return results
	}

	// Images are attached per document, fetched once per call
	imagesByDoc := make(map[string][]models.Image)
	for _, m := range matches {
		images, ok := imagesByDoc[m.DocumentID]
		if !ok {
			images, err = r.store.ImagesForDocument(ctx, m.DocumentID)
			if err != nil {
				logger.Warn("Failed to load document images",
					"document_id", m.DocumentID,
					"error", err,
				)
				images = []models.Image{}
			}
			imagesByDoc[m.DocumentID] = images
		}

		results = append(results, models.RetrievalResult{
			Chunk:      m.Chunk,
			Similarity: m.Similarity,
			Images:     images,
		})
	}
	return results
}
