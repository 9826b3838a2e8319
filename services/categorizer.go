package services

import (
	"context"
	"fmt"

	"disclosure-rag/internal/logger"
	"disclosure-rag/models"
)

// Categorizer classifies a document's text and writes the phase view
type Categorizer struct {
	classifier *PhaseClassifier
	artifacts  *ArtifactWriter
}

func NewCategorizer(classifier *PhaseClassifier, artifacts *ArtifactWriter) *Categorizer {
	return &Categorizer{classifier: classifier, artifacts: artifacts}
}

// Categorize writes the four phase files, and the workbook when exportXLSX is
// set. A degraded classification is still a successful run.
func (c *Categorizer) Categorize(ctx context.Context, pdfName, text, strategy string, exportXLSX bool) (*models.CategorizeResponse, models.Classification, error) {
	result := c.classifier.Classify(ctx, text, strategy)

	files, err := c.artifacts.WritePhaseFiles(pdfName, result.Assignment, result.Language)
	if err != nil {
		return nil, result, fmt.Errorf("write phase files for %s: %w", pdfName, err)
	}

	resp := &models.CategorizeResponse{
		PDFName:       pdfName,
		Status:        result.Status,
		Strategy:      result.Strategy,
		Reason:        result.Reason,
		Language:      result.Language,
		SectionCounts: result.Assignment.Counts(),
		Files:         files,
	}

	if exportXLSX {
		path, err := c.artifacts.WritePhaseWorkbook(pdfName, result)
		if err != nil {
			return nil, result, fmt.Errorf("write workbook for %s: %w", pdfName, err)
		}
		resp.WorkbookPath = path
	}

	logger.Info("Categorization written",
		"pdf", pdfName,
		"status", result.Status,
		"strategy", result.Strategy,
		"counts", resp.SectionCounts,
	)
	return resp, result, nil
}

// CategorizeStored runs Categorize over the full text saved at ingestion
func (c *Categorizer) CategorizeStored(ctx context.Context, store *StoreAdapter, documentID, strategy string, exportXLSX bool) (*models.CategorizeResponse, error) {
	doc, err := store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	resp, _, err := c.Categorize(ctx, PDFName(doc.Filename), doc.FullText, strategy, exportXLSX)
	return resp, err
}

// Classify returns the phase view without writing any files
func (c *Categorizer) Classify(ctx context.Context, text, strategy string) models.Classification {
	return c.classifier.Classify(ctx, text, strategy)
}
