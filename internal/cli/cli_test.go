package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"disclosure-rag/internal/ai"
	"disclosure-rag/internal/app"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/database"
	"disclosure-rag/models"
	"disclosure-rag/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type markdownExtractor struct {
	markdown string
}

func (e markdownExtractor) Extract(ctx context.Context, path string) (*services.Extraction, error) {
	return &services.Extraction{Markdown: e.markdown, Method: "test"}, nil
}

const reportMarkdown = "## Location\n\nOur operating sites and their location near protected areas.\n\n" +
	"## Transition strategy\n\nTargets and strategy for the next decade."

// setupTestPipeline swaps in a memory-backed keyword-only pipeline shared by
// every command run in the test
func setupTestPipeline(t *testing.T) (*app.App, string) {
	t.Helper()
	out := t.TempDir()
	cfg := &config.Config{
		StoreBackend:        config.BackendMemory,
		ClassifierStrategy:  models.StrategyKeyword,
		MaxChunkSize:        1000,
		LanguageSampleChars: 2000,
		MatchThreshold:      0.7,
		QAMaxChunks:         5,
		OutputDir:           out,
	}
	lists, err := services.LoadKeywordLists("")
	require.NoError(t, err)

	artifacts := services.NewArtifactWriter(out)
	store := services.NewStoreAdapter(database.NewMemoryStore(), ai.DisabledEmbedder{}, cfg, nil)
	a := &app.App{
		Config:   cfg,
		Store:    store,
		Ingestor: services.NewIngestor(markdownExtractor{markdown: reportMarkdown}, store, artifacts, cfg, nil),
		Categorizer: services.NewCategorizer(
			services.NewPhaseClassifier(cfg, services.NewKeywordClassifier(lists), nil, nil),
			artifacts,
		),
		Answerer: services.NewAnswerer(services.NewRetriever(store, cfg), nil, cfg, nil),
	}

	orig := newPipeline
	newPipeline = func(ctx context.Context) (*app.App, error) { return a, nil }
	t.Cleanup(func() {
		newPipeline = orig
		jsonOutput = false
		processStrategy = ""
		processXLSX = false
		processCategorize = true
		categorizeStrategy = ""
		categorizeXLSX = false
		askMaxChunks = 0
	})
	return a, out
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	// flags keep their values between Execute calls
	jsonOutput = false
	return buf.String(), err
}

func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"process", "categorize", "ask", "list", "delete"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	assert.Equal(t, "", processCmd.Flags().Lookup("strategy").DefValue)
	assert.Equal(t, "true", processCmd.Flags().Lookup("categorize").DefValue)
	assert.Equal(t, "0", askCmd.Flags().Lookup("chunks").DefValue)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("store"))
}

func TestProcessWritesPhaseFiles(t *testing.T) {
	_, out := setupTestPipeline(t)
	pdf := writeTestPDF(t)

	output, err := run(t, "process", pdf, "--xlsx")
	require.NoError(t, err)

	assert.Contains(t, output, "report.pdf")
	assert.Contains(t, output, "LEAP: ok via keyword")
	assert.Contains(t, output, "workbook:")

	for _, phase := range models.Phases {
		assert.FileExists(t, filepath.Join(out, "report_"+string(phase)+".md"))
	}
	assert.FileExists(t, filepath.Join(out, "report_full_text.md"))
	assert.FileExists(t, filepath.Join(out, "report_LEAP.xlsx"))
}

func TestProcessJSON(t *testing.T) {
	setupTestPipeline(t)
	pdf := writeTestPDF(t)

	output, err := run(t, "process", pdf, "--categorize=false", "--json")
	require.NoError(t, err)

	var results []processResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Ingest.ChunkCount)
	assert.Equal(t, 0, results[0].Ingest.Embedded)
	assert.Nil(t, results[0].Categorize)
}

func TestProcessMissingFile(t *testing.T) {
	setupTestPipeline(t)
	_, err := run(t, "process", filepath.Join(t.TempDir(), "absent.pdf"))
	assert.ErrorIs(t, err, services.ErrInputNotFound)
}

func TestCategorizeResolvesDocument(t *testing.T) {
	a, out := setupTestPipeline(t)
	ingested, err := a.Ingestor.Ingest(context.Background(), writeTestPDF(t))
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		output, err := run(t, "categorize", ingested.DocumentID)
		require.NoError(t, err)
		assert.Contains(t, output, "report")
	})

	t.Run("by filename", func(t *testing.T) {
		output, err := run(t, "categorize", "report.pdf", "--json")
		require.NoError(t, err)

		var resp models.CategorizeResponse
		require.NoError(t, json.Unmarshal([]byte(output), &resp))
		assert.Equal(t, "report", resp.PDFName)
		assert.Equal(t, models.ClassificationOK, resp.Status)
		assert.Positive(t, resp.SectionCounts[models.PhaseLocate])
	})

	t.Run("from full text artifact", func(t *testing.T) {
		_, err := services.NewArtifactWriter(out).WriteFullText("orphan", reportMarkdown)
		require.NoError(t, err)

		output, err := run(t, "categorize", "orphan.pdf")
		require.NoError(t, err)
		assert.Contains(t, output, "orphan")
		assert.FileExists(t, filepath.Join(out, "orphan_L.md"))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := run(t, "categorize", "nothing-here")
		assert.ErrorIs(t, err, services.ErrInputNotFound)
	})
}

func TestAskWithoutContext(t *testing.T) {
	setupTestPipeline(t)

	output, err := run(t, "ask", "What", "are", "the", "targets?", "--json")
	require.NoError(t, err)

	var answer models.Answer
	require.NoError(t, json.Unmarshal([]byte(output), &answer))
	assert.Equal(t, models.ConfidenceLow, answer.Confidence)
	assert.Equal(t, 0, answer.ChunksUsed)
}

func TestListAndDelete(t *testing.T) {
	a, _ := setupTestPipeline(t)

	output, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, output, "No documents stored.")

	ingested, err := a.Ingestor.Ingest(context.Background(), writeTestPDF(t))
	require.NoError(t, err)

	output, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, output, ingested.DocumentID)
	assert.Contains(t, output, "report.pdf")

	output, err = run(t, "delete", ingested.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, output, "Deleted "+ingested.DocumentID)

	_, err = run(t, "delete", ingested.DocumentID)
	assert.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORE_BACKEND", "mongo")
	t.Cleanup(func() {
		storeBackend = ""
		outputDir = ""
	})

	storeBackend = config.BackendMemory
	outputDir = "/tmp/leap-out"

	cfg, keywordOnly, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, keywordOnly)
	assert.Equal(t, models.StrategyKeyword, cfg.ClassifierStrategy)
	assert.Equal(t, config.BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "/tmp/leap-out", cfg.OutputDir)

	storeBackend = "sqlite"
	_, _, err = loadConfig()
	assert.Error(t, err)
}
