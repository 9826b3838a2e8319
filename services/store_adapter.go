package services

import (
	"context"
	"errors"
	"fmt"

	"disclosure-rag/internal/ai"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/database"
	"disclosure-rag/internal/logger"
	"disclosure-rag/internal/telemetry"
	"disclosure-rag/models"
	"disclosure-rag/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Search defaults
const (
	DefaultSearchLimit    = 5
	DefaultMatchThreshold = 0.7
)

// StoreCounts summarizes a StoreDocument call
type StoreCounts struct {
	DocumentID string
	Chunks     int
	Images     int
	Embedded   int
	Language   string
}

// StoreAdapter persists documents with their chunks and images under a
// filename-derived identity and answers similarity queries.
type StoreAdapter struct {
	backend     database.Backend
	embedder    ai.Embedder
	metrics     *telemetry.Metrics
	sampleChars int
}

func NewStoreAdapter(backend database.Backend, embedder ai.Embedder, cfg *config.Config, metrics *telemetry.Metrics) *StoreAdapter {
	return &StoreAdapter{
		backend:     backend,
		embedder:    embedder,
		metrics:     metrics,
		sampleChars: cfg.LanguageSampleChars,
	}
}

// Backend exposes the underlying persistence layer
func (s *StoreAdapter) Backend() database.Backend {
	return s.backend
}

// StoreDocument upserts the document and replaces its chunks and images.
// Chunk and image indexes are their 0-based input positions. Chunks whose
// embedding fails are stored unsearchable. Replacement is not transactional:
// concurrent ingestion of the same filename is last-writer-wins.
func (s *StoreAdapter) StoreDocument(ctx context.Context, filename, fullText string, chunks []models.Chunk, images []models.Image) (*StoreCounts, error) {
	tracer := otel.Tracer("store-adapter")
	ctx, span := tracer.Start(ctx, "store.document")
	defer span.End()

	docID := utils.DocumentID(filename)
	span.SetAttributes(
		attribute.String("document.id", docID),
		attribute.Int("document.chunks", len(chunks)),
		attribute.Int("document.images", len(images)),
	)

	doc := &models.Document{
		ID:         docID,
		Filename:   filename,
		FullText:   fullText,
		ChunkCount: len(chunks),
		ImageCount: len(images),
		Language:   DetectLanguage(fullText, s.sampleChars),
		Status:     models.StatusCompleted,
	}
	if err := s.record("upsert_document", s.backend.UpsertDocument(ctx, doc)); err != nil {
		return nil, fmt.Errorf("store %s: upsert document: %w", filename, err)
	}

	removed, err := s.backend.DeleteChunks(ctx, docID)
	if err := s.record("delete_chunks", err); err != nil {
		return nil, fmt.Errorf("store %s: delete previous chunks: %w", filename, err)
	}
	removedImages, err := s.backend.DeleteImages(ctx, docID)
	if err := s.record("delete_images", err); err != nil {
		return nil, fmt.Errorf("store %s: delete previous images: %w", filename, err)
	}
	if removed > 0 || removedImages > 0 {
		logger.Info("Replacing previous ingestion",
			"filename", filename,
			"chunks_removed", removed,
			"images_removed", removedImages,
		)
	}

	embedded := 0
	rows := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.DocumentID = docID
		c.Index = i
		c.Filename = filename
		c.Embedding = s.embedder.EmbedDocument(ctx, c.Text)
		if c.Searchable() {
			embedded++
		}
		rows[i] = c
	}
	if err := s.record("insert_chunks", s.backend.InsertChunks(ctx, rows)); err != nil {
		return nil, fmt.Errorf("store %s: insert chunks: %w", filename, err)
	}

	imageRows := make([]models.Image, len(images))
	for i, img := range images {
		img.DocumentID = docID
		img.Index = i
		imageRows[i] = img
	}
	if err := s.record("insert_images", s.backend.InsertImages(ctx, imageRows)); err != nil {
		return nil, fmt.Errorf("store %s: insert images: %w", filename, err)
	}

	if embedded < len(rows) {
		logger.Warn("Some chunks stored without embeddings",
			"filename", filename,
			"unembedded", len(rows)-embedded,
		)
	}

	return &StoreCounts{
		DocumentID: docID,
		Chunks:     len(rows),
		Images:     len(imageRows),
		Embedded:   embedded,
		Language:   doc.Language,
	}, nil
}

// SearchSimilar embeds the query and returns at most limit chunks at or above
// threshold. A query that cannot be embedded matches nothing.
func (s *StoreAdapter) SearchSimilar(ctx context.Context, query string, limit int, threshold float64) ([]models.ScoredChunk, error) {
	tracer := otel.Tracer("store-adapter")
	ctx, span := tracer.Start(ctx, "store.search_similar")
	defer span.End()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	span.SetAttributes(
		attribute.Int("search.limit", limit),
		attribute.Float64("search.threshold", threshold),
	)

	embedding := s.embedder.EmbedQuery(ctx, query)
	if len(embedding) == 0 {
		return []models.ScoredChunk{}, nil
	}

	results, err := s.backend.MatchChunks(ctx, embedding, threshold, limit)
	if err := s.record("match_chunks", err); err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// DeleteDocument removes chunks, then images, then the document. A failure
// part way leaves the remaining rows in place and is returned, not retried.
func (s *StoreAdapter) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.backend.GetDocument(ctx, id); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"delete_chunks", func() error { _, err := s.backend.DeleteChunks(ctx, id); return err }},
		{"delete_images", func() error { _, err := s.backend.DeleteImages(ctx, id); return err }},
		{"delete_document", func() error { return s.backend.DeleteDocument(ctx, id) }},
	}

	for _, step := range steps {
		if err := s.record(step.name, step.run()); err != nil {
			logger.Error("Document delete interrupted",
				"document_id", id,
				"step", step.name,
				"error", err,
			)
			return fmt.Errorf("delete document %s: %s: %w", id, step.name, err)
		}
	}
	return nil
}

func (s *StoreAdapter) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.backend.ListDocuments(ctx)
}

func (s *StoreAdapter) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.backend.GetDocument(ctx, id)
}

// GetDocumentByFilename resolves a document through its filename identity
func (s *StoreAdapter) GetDocumentByFilename(ctx context.Context, filename string) (*models.Document, error) {
	return s.backend.GetDocument(ctx, utils.DocumentID(filename))
}

func (s *StoreAdapter) ImagesForDocument(ctx context.Context, id string) ([]models.Image, error) {
	return s.backend.ImagesByDocument(ctx, id)
}

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrDocumentNotFound)
}

func (s *StoreAdapter) record(op string, err error) error {
	s.metrics.RecordStoreOperation(op, s.backend.Name(), err == nil)
	return err
}
