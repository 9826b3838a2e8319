package ai

import (
	"context"
	"fmt"
	"time"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

// Embedder maps text to a vector. Implementations return an empty vector on
// failure; callers must treat empty vectors as unsearchable.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) []float32
	EmbedQuery(ctx context.Context, text string) []float32
	Model() string
}

// GeminiEmbedder uses the Google Generative AI embedding models (text-embedding-004)
type GeminiEmbedder struct {
	client    *genai.Client
	document  *genai.EmbeddingModel
	query     *genai.EmbeddingModel
	modelName string
	timeout   time.Duration
}

var _ Embedder = (*GeminiEmbedder)(nil)

func NewGeminiEmbedder(ctx context.Context, cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("embeddings: %w", ErrMissingAPIKey)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	document := client.EmbeddingModel(cfg.GoogleEmbeddingsModel)
	document.TaskType = genai.TaskTypeRetrievalDocument
	query := client.EmbeddingModel(cfg.GoogleEmbeddingsModel)
	query.TaskType = genai.TaskTypeRetrievalQuery

	timeout := cfg.EmbeddingTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiEmbedder{
		client:    client,
		document:  document,
		query:     query,
		modelName: cfg.GoogleEmbeddingsModel,
		timeout:   timeout,
	}, nil
}

func (e *GeminiEmbedder) Model() string {
	return e.modelName
}

func (e *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) []float32 {
	return e.embed(ctx, e.document, "retrieval_document", text)
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) []float32 {
	return e.embed(ctx, e.query, "retrieval_query", text)
}

func (e *GeminiEmbedder) embed(ctx context.Context, model *genai.EmbeddingModel, task, text string) []float32 {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.modelName),
		attribute.String("gemini.task_type", task),
		attribute.Int("gemini.input_chars", len(text)),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		span.RecordError(err)
		logger.Warn("Embedding failed, storing without vector", "task", task, "error", err)
		return []float32{}
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		logger.Warn("Embedding response was empty", "task", task)
		return []float32{}
	}

	// genai SDK returns []float32 for Embedding.Values
	return resp.Embedding.Values
}

// Close the client
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// DisabledEmbedder stands in when no embedding credential is configured.
// Everything it stores is unsearchable.
type DisabledEmbedder struct{}

var _ Embedder = DisabledEmbedder{}

func (DisabledEmbedder) EmbedDocument(ctx context.Context, text string) []float32 { return []float32{} }
func (DisabledEmbedder) EmbedQuery(ctx context.Context, text string) []float32    { return []float32{} }
func (DisabledEmbedder) Model() string                                           { return "disabled" }
