package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/database"
	"disclosure-rag/services"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticExtractor struct{ markdown string }

func (e staticExtractor) Extract(ctx context.Context, path string) (*services.Extraction, error) {
	return &services.Extraction{Markdown: e.markdown}, nil
}

type nullEmbedder struct{}

func (nullEmbedder) EmbedDocument(ctx context.Context, text string) []float32 { return nil }
func (nullEmbedder) EmbedQuery(ctx context.Context, text string) []float32    { return nil }
func (nullEmbedder) Model() string                                           { return "null" }

type recordingUploader struct{ paths []string }

func (u *recordingUploader) UploadArtifacts(ctx context.Context, paths []string) error {
	u.paths = append(u.paths, paths...)
	return nil
}

func newTestProcessor(t *testing.T) (*TaskProcessor, *recordingUploader) {
	t.Helper()
	cfg := &config.Config{MaxChunkSize: 1000, LanguageSampleChars: 2000, ClassifierStrategy: "keyword"}

	lists, err := services.LoadKeywordLists("")
	require.NoError(t, err)

	store := services.NewStoreAdapter(database.NewMemoryStore(), nullEmbedder{}, cfg, nil)
	artifacts := services.NewArtifactWriter(t.TempDir())
	ingestor := services.NewIngestor(staticExtractor{markdown: "## Location\n\nSites.\n\n## Targets\n\nNo net loss."}, store, artifacts, cfg, nil)
	classifier := services.NewPhaseClassifier(cfg, services.NewKeywordClassifier(lists), nil, nil)
	uploader := &recordingUploader{}

	return NewTaskProcessor(ingestor, services.NewCategorizer(classifier, artifacts), store, uploader), uploader
}

func taskWith(t *testing.T, typename string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typename, data)
}

func TestNewIngestTask(t *testing.T) {
	task, err := NewIngestTask(IngestPayload{Path: "/data/report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, TaskIngestDocument, task.Type())

	var payload IngestPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.NotEmpty(t, payload.RunID)
	assert.Equal(t, "/data/report.pdf", payload.Path)
}

func TestProcessIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("bad payload is not retried", func(t *testing.T) {
		p, _ := newTestProcessor(t)
		err := p.ProcessIngest(ctx, asynq.NewTask(TaskIngestDocument, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("missing input is not retried", func(t *testing.T) {
		p, _ := newTestProcessor(t)
		err := p.ProcessIngest(ctx, taskWith(t, TaskIngestDocument, IngestPayload{Path: "/nonexistent/report.pdf"}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, services.ErrInputNotFound)
	})

	t.Run("ingest and categorize", func(t *testing.T) {
		p, uploader := newTestProcessor(t)
		path := filepath.Join(t.TempDir(), "report.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

		err := p.ProcessIngest(ctx, taskWith(t, TaskIngestDocument, IngestPayload{
			Path:       path,
			Categorize: true,
			Strategy:   "keyword",
		}))
		require.NoError(t, err)
		assert.Len(t, uploader.paths, 5, "full text and four phase files")
	})
}

func TestProcessCategorize(t *testing.T) {
	p, _ := newTestProcessor(t)
	err := p.ProcessCategorize(context.Background(), taskWith(t, TaskCategorizeDocument, CategorizePayload{DocumentID: "missing"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRedisConnOpt(t *testing.T) {
	opt, err := RedisConnOpt(&config.Config{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
