package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"disclosure-rag/internal/database"
	"disclosure-rag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bytesImage struct {
	data []byte
	err  error
}

func (b bytesImage) Render() ([]byte, error) { return b.data, b.err }

// fakeExtractor returns the same extraction for any path
type fakeExtractor struct {
	markdown string
	images   []ExtractedImage
	err      error
	closed   int
}

func (e *fakeExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &Extraction{
		Markdown: e.markdown,
		Images:   e.images,
		cleanup:  func() { e.closed++ },
	}, nil
}

// basinEmbedder embeds only text mentioning river basins
type basinEmbedder struct{}

func (basinEmbedder) embed(text string) []float32 {
	if strings.Contains(text, "river basins") {
		return []float32{1, 0}
	}
	return []float32{}
}

func (e basinEmbedder) EmbedDocument(ctx context.Context, text string) []float32 { return e.embed(text) }
func (e basinEmbedder) EmbedQuery(ctx context.Context, text string) []float32    { return e.embed(text) }
func (basinEmbedder) Model() string                                              { return "basin" }

const ingestMarkdown = "## Location\n\nOur sites span three river basins.\n\n<!-- image -->\n\n" +
	"## Strategy and Targets\n\nWe commit to no net loss by 2030.\n\n<!-- image -->\n\n<!-- image -->"

func newTestIngestor(t *testing.T, extractor Extractor) (*Ingestor, *StoreAdapter, string) {
	t.Helper()
	out := t.TempDir()
	store := NewStoreAdapter(database.NewMemoryStore(), basinEmbedder{}, testConfig(), nil)
	return NewIngestor(extractor, store, NewArtifactWriter(out), testConfig(), nil), store, out
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestIngestor_Ingest(t *testing.T) {
	extractor := &fakeExtractor{
		markdown: ingestMarkdown,
		images: []ExtractedImage{
			bytesImage{data: []byte("one")},
			bytesImage{err: errors.New("corrupt stream")},
			bytesImage{data: []byte("three")},
		},
	}
	ingestor, store, out := newTestIngestor(t, extractor)
	path := writePDF(t)

	result, err := ingestor.Ingest(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", result.Filename)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 2, result.ImageCount, "the image that fails to render is skipped")
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, LanguageEnglish, result.Language)
	assert.Equal(t, 1, extractor.closed)

	text, err := ingestor.Artifacts().ReadFullText("report")
	require.NoError(t, err)
	assert.Contains(t, text, "![Image 1](report_images/image_001.png)")
	assert.Contains(t, text, "![Image 2](report_images/image_002.png)")
	assert.Equal(t, 1, strings.Count(text, ImagePlaceholder))

	second, err := os.ReadFile(filepath.Join(out, "report_images", "image_002.png"))
	require.NoError(t, err)
	assert.Equal(t, "three", string(second))

	images, err := store.ImagesForDocument(context.Background(), result.DocumentID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "Image 2", images[1].Caption)

	hits, err := store.SearchSimilar(context.Background(), "Where are the river basins?", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Location", hits[0].Heading)
}

func TestIngestor_ReingestReplaces(t *testing.T) {
	extractor := &fakeExtractor{markdown: ingestMarkdown}
	ingestor, store, _ := newTestIngestor(t, extractor)
	path := writePDF(t)
	ctx := context.Background()

	first, err := ingestor.Ingest(ctx, path)
	require.NoError(t, err)

	extractor.markdown = "## Location\n\nOne site only."
	second, err := ingestor.Ingest(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, second.ChunkCount)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	n, err := store.Backend().CountChunks(ctx, second.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIngestor_Errors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		ingestor, _, _ := newTestIngestor(t, &fakeExtractor{markdown: ingestMarkdown})
		_, err := ingestor.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
		assert.ErrorIs(t, err, ErrInputNotFound)
	})

	t.Run("extraction failure", func(t *testing.T) {
		ingestor, _, _ := newTestIngestor(t, &fakeExtractor{err: errors.New("encrypted")})
		_, err := ingestor.Ingest(context.Background(), writePDF(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report.pdf")
		assert.NotErrorIs(t, err, ErrInputNotFound)
	})
}

func TestPDFName(t *testing.T) {
	assert.Equal(t, "report", PDFName("/tmp/in/report.pdf"))
	assert.Equal(t, "annual.report", PDFName("annual.report.PDF"))
}

func TestCategorizer(t *testing.T) {
	ctx := context.Background()
	classifier := NewPhaseClassifier(testConfig(), newTestKeywordClassifier(t), nil, nil)
	artifacts := NewArtifactWriter(t.TempDir())
	categorizer := NewCategorizer(classifier, artifacts)

	t.Run("keyword strategy", func(t *testing.T) {
		resp, result, err := categorizer.Categorize(ctx, "report", ingestMarkdown, models.StrategyKeyword, true)
		require.NoError(t, err)

		assert.Equal(t, models.ClassificationOK, resp.Status)
		assert.Equal(t, map[models.Phase]int{"L": 1, "E": 0, "A": 0, "P": 1}, resp.SectionCounts)
		assert.Len(t, resp.Files, 4)
		assert.FileExists(t, resp.WorkbookPath)
		assert.Len(t, result.Assignment, 4)

		data, err := os.ReadFile(resp.Files[models.PhaseAssess])
		require.NoError(t, err)
		assert.Contains(t, string(data), "*No content identified for Assess phase*")
	})

	t.Run("missing generator degrades", func(t *testing.T) {
		resp, _, err := categorizer.Categorize(ctx, "report", ingestMarkdown, models.StrategyGemini, false)
		require.NoError(t, err)
		assert.Equal(t, models.ClassificationDegraded, resp.Status)
		assert.Equal(t, models.StrategyKeyword, resp.Strategy)
		assert.NotEmpty(t, resp.Reason)
		assert.Empty(t, resp.WorkbookPath)
	})

	t.Run("stored document", func(t *testing.T) {
		store := NewStoreAdapter(database.NewMemoryStore(), newFakeEmbedder(nil), testConfig(), nil)
		counts, err := store.StoreDocument(ctx, "report.pdf", ingestMarkdown, nil, nil)
		require.NoError(t, err)

		resp, err := categorizer.CategorizeStored(ctx, store, counts.DocumentID, models.StrategyKeyword, false)
		require.NoError(t, err)
		assert.Equal(t, "report", resp.PDFName)

		_, err = categorizer.CategorizeStored(ctx, store, "unknown", models.StrategyKeyword, false)
		assert.True(t, IsNotFound(err))
	})
}
