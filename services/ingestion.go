package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/internal/telemetry"
	"disclosure-rag/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrInputNotFound is returned when the PDF or a prior artifact is missing
var ErrInputNotFound = errors.New("input not found")

// PDFName is the artifact prefix of a file: its base name without extension
func PDFName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ingestor runs extraction, artifact writing, chunking and storage for one PDF
type Ingestor struct {
	extractor Extractor
	segmenter *Segmenter
	chunker   *Chunker
	store     *StoreAdapter
	artifacts *ArtifactWriter
	metrics   *telemetry.Metrics
}

func NewIngestor(extractor Extractor, store *StoreAdapter, artifacts *ArtifactWriter, cfg *config.Config, metrics *telemetry.Metrics) *Ingestor {
	return &Ingestor{
		extractor: extractor,
		segmenter: NewSegmenter(DocumentHeadingLevels...),
		chunker:   NewChunker(cfg.MaxChunkSize),
		store:     store,
		artifacts: artifacts,
		metrics:   metrics,
	}
}

// Artifacts exposes the writer so callers can categorize into the same folder
func (in *Ingestor) Artifacts() *ArtifactWriter {
	return in.artifacts
}

// Ingest processes the PDF at path. A missing file is ErrInputNotFound.
// Images that fail to render are skipped.
func (in *Ingestor) Ingest(ctx context.Context, path string) (*models.IngestResult, error) {
	start := time.Now()
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingest.pdf")
	defer span.End()

	filename := filepath.Base(path)
	span.SetAttributes(attribute.String("document.filename", filename))

	result, err := in.ingest(ctx, path, filename)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		in.metrics.RecordIngestion(duration.Seconds(), models.StatusFailed, 0, 0)
		logger.Error("Ingestion failed", "filename", filename, "error", err)
		return nil, err
	}

	result.ProcessingMS = duration.Milliseconds()
	in.metrics.RecordIngestion(duration.Seconds(), models.StatusCompleted, result.Embedded, result.ChunkCount-result.Embedded)
	logger.Info("Ingestion completed",
		"filename", filename,
		"document_id", result.DocumentID,
		"chunks", result.ChunkCount,
		"images", result.ImageCount,
		"embedded", result.Embedded,
		"duration_ms", result.ProcessingMS,
	)
	return result, nil
}

func (in *Ingestor) ingest(ctx context.Context, path, filename string) (*models.IngestResult, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	extraction, err := in.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	defer extraction.Close()

	pdfName := PDFName(filename)
	images := in.saveImages(pdfName, extraction.Images)

	text := ReplaceImagePlaceholders(extraction.Markdown, pdfName, len(images))
	fullTextPath, err := in.artifacts.WriteFullText(pdfName, text)
	if err != nil {
		return nil, fmt.Errorf("write full text for %s: %w", filename, err)
	}

	chunks := in.chunker.Chunk(in.segmenter.Segment(text))
	counts, err := in.store.StoreDocument(ctx, filename, text, chunks, images)
	if err != nil {
		return nil, err
	}

	artifacts := map[string]string{"full_text": fullTextPath}
	if len(images) > 0 {
		artifacts["images"] = filepath.Join(in.artifacts.OutputDir(), ImagesDirName(pdfName))
	}

	return &models.IngestResult{
		DocumentID: counts.DocumentID,
		Filename:   filename,
		ChunkCount: counts.Chunks,
		ImageCount: counts.Images,
		Language:   counts.Language,
		Embedded:   counts.Embedded,
		Artifacts:  artifacts,
	}, nil
}

// saveImages renders, writes and encodes images, numbering the saved ones from 1
func (in *Ingestor) saveImages(pdfName string, extracted []ExtractedImage) []models.Image {
	images := make([]models.Image, 0, len(extracted))
	for i, img := range extracted {
		data, err := img.Render()
		if err != nil {
			logger.Warn("Skipping image", "pdf", pdfName, "position", i, "error", err)
			continue
		}
		n := len(images) + 1
		if _, err := in.artifacts.WriteImage(pdfName, n, data); err != nil {
			logger.Warn("Skipping image", "pdf", pdfName, "position", i, "error", err)
			continue
		}
		images = append(images, models.Image{
			Filename: models.ImageFilename(n),
			Data:     base64.StdEncoding.EncodeToString(data),
			Caption:  models.ImageCaption(n),
		})
	}
	return images
}
