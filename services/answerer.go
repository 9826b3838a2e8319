package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"disclosure-rag/internal/ai"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/internal/telemetry"
	"disclosure-rag/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const qaSystemPrompt = `You are a helpful assistant that answers questions about company information.

You will be provided with relevant context from company documents including text excerpts and associated images.

Instructions:
1. Answer questions based ONLY on the provided context
2. If the context doesn't contain enough information, say so honestly
3. Be concise and direct
4. Reference specific sections when relevant
5. Indicate if images/charts support your answer

Response format (return as JSON):
{
  "answer": "Your clear, concise answer here",
  "sources": ["Section 1", "Section 2"],
  "confidence": "high/medium/low"
}

Return ONLY the JSON object, no other text.`

const (
	NoInformationAnswer = "I don't have any information to answer that question. Please make sure documents have been uploaded and processed."
	noAnswerGenerated   = "No answer generated"

	maxImagesPerChunk = 2
	maxImagesTotal    = 5
)

// Answerer produces grounded answers. It always returns a structurally valid
// Answer, even when every generation attempt fails.
type Answerer struct {
	retriever *Retriever
	generator ai.Generator
	maxChunks int
	metrics   *telemetry.Metrics
}

func NewAnswerer(retriever *Retriever, generator ai.Generator, cfg *config.Config, metrics *telemetry.Metrics) *Answerer {
	maxChunks := cfg.QAMaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultSearchLimit
	}
	return &Answerer{
		retriever: retriever,
		generator: generator,
		maxChunks: maxChunks,
		metrics:   metrics,
	}
}

type modelAnswer struct {
	Answer     *string  `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence string   `json:"confidence"`
}

// Answer retrieves up to maxChunks chunks (the configured default when <= 0)
// and asks the model. With nothing retrieved the model is not called.
func (a *Answerer) Answer(ctx context.Context, question string, maxChunks int) models.Answer {
	tracer := otel.Tracer("answerer")
	ctx, span := tracer.Start(ctx, "qa.answer")
	defer span.End()

	if maxChunks <= 0 {
		maxChunks = a.maxChunks
	}

	retrieved := a.retriever.Retrieve(ctx, question, maxChunks)
	span.SetAttributes(attribute.Int("qa.chunks_retrieved", len(retrieved)))

	answer := a.answer(ctx, question, retrieved)
	span.SetAttributes(attribute.String("qa.confidence", string(answer.Confidence)))
	a.metrics.RecordAnswer(string(answer.Confidence), answer.ChunksUsed)
	return answer
}

func (a *Answerer) answer(ctx context.Context, question string, retrieved []models.RetrievalResult) models.Answer {
	if len(retrieved) == 0 {
		return models.Answer{
			Answer:     NoInformationAnswer,
			Sources:    []string{},
			Confidence: models.ConfidenceLow,
			Images:     []models.Image{},
		}
	}

	contextText := BuildContext(retrieved)

	parsed, err := a.generateStructured(ctx, question, contextText)
	if err != nil {
		logger.Warn("Structured answer failed, retrying as plain text", "error", err)

		text, fallbackErr := a.generate(ctx, BuildFallbackPrompt(question, contextText))
		if fallbackErr != nil {
			logger.Error("Answer generation failed", "error", fallbackErr)
			return models.Answer{
				Answer:     fmt.Sprintf("Error generating answer: %v", fallbackErr),
				Sources:    []string{},
				Confidence: models.ConfidenceLow,
				Images:     []models.Image{},
			}
		}

		sources := make([]string, 0, len(retrieved))
		for _, r := range retrieved {
			sources = append(sources, headingOr(r.Chunk.Heading, "Unknown"))
		}
		parsed = &models.Answer{
			Answer:     text,
			Sources:    sources,
			Confidence: models.ConfidenceMedium,
		}
	}

	parsed.Images = collectImages(retrieved)
	parsed.ChunksUsed = len(retrieved)
	return *parsed
}

func (a *Answerer) generateStructured(ctx context.Context, question, contextText string) (*models.Answer, error) {
	response, err := a.generate(ctx, BuildAnswerPrompt(question, contextText))
	if err != nil {
		return nil, err
	}

	var out modelAnswer
	if err := json.Unmarshal([]byte(ai.StripCodeFences(response)), &out); err != nil {
		return nil, fmt.Errorf("malformed answer JSON: %w", err)
	}

	answer := noAnswerGenerated
	if out.Answer != nil {
		answer = *out.Answer
	}
	sources := out.Sources
	if sources == nil {
		sources = []string{}
	}
	return &models.Answer{
		Answer:     answer,
		Sources:    sources,
		Confidence: models.ParseConfidence(strings.ToLower(strings.TrimSpace(out.Confidence))),
	}, nil
}

func (a *Answerer) generate(ctx context.Context, prompt string) (string, error) {
	if a.generator == nil {
		return "", ai.ErrMissingAPIKey
	}
	return a.generator.Generate(ctx, prompt)
}

// BuildContext renders retrieved chunks as numbered context blocks
func BuildContext(retrieved []models.RetrievalResult) string {
	parts := make([]string, 0, len(retrieved))
	for i, r := range retrieved {
		parts = append(parts, fmt.Sprintf("\n--- Context %d (from %s) ---\nSection: %s\nContent: %s\n",
			i+1,
			headingOr(r.Chunk.Filename, "Unknown"),
			headingOr(r.Chunk.Heading, "Untitled Section"),
			r.Chunk.Text,
		))
	}
	return strings.Join(parts, "\n")
}

func BuildAnswerPrompt(question, contextText string) string {
	return fmt.Sprintf("%s\n\nQuestion: %s\n\nContext:\n%s\n\nProvide your answer as a JSON object.", qaSystemPrompt, question, contextText)
}

func BuildFallbackPrompt(question, contextText string) string {
	return fmt.Sprintf("Answer this question based on the context:\n\nQuestion: %s\n\nContext:\n%s", question, contextText)
}

// collectImages takes at most two images per chunk and five overall, in rank order
func collectImages(retrieved []models.RetrievalResult) []models.Image {
	images := []models.Image{}
	for _, r := range retrieved {
		n := len(r.Images)
		if n > maxImagesPerChunk {
			n = maxImagesPerChunk
		}
		images = append(images, r.Images[:n]...)
	}
	if len(images) > maxImagesTotal {
		images = images[:maxImagesTotal]
	}
	return images
}

func headingOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
