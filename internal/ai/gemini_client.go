package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"disclosure-rag/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiConfig configures one generative model binding
type GeminiConfig struct {
	APIKey          string
	Model           string
	Tier            string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

type GeminiClient struct {
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	client      *genai.Client
	model       *genai.GenerativeModel
	modelName   string
	timeout     time.Duration
}

var _ Generator = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, metrics *telemetry.Metrics) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiClient{
		breaker:     newBreaker("GeminiAPI:"+cfg.Model, metrics),
		rateLimiter: newRateLimiter(cfg.Tier),
		client:      client,
		model:       model,
		modelName:   cfg.Model,
		timeout:     timeout,
	}, nil
}

func (gc *GeminiClient) Model() string {
	return gc.modelName
}

// Generate sends a single-turn prompt. The per-call timeout covers the
// rate-limiter wait and the request itself.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.modelName),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait")
		return "", fmt.Errorf("gemini rate limiter: %w", err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		resp, err := gc.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		err = breakerError(err)
		span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", err == ErrCircuitOpen))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content")
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	resp := result.(*genai.GenerateContentResponse)
	span.SetAttributes(attribute.Int("gemini.actual_tokens", extractTokenUsage(resp)))

	text := strings.TrimSpace(extractTextFromResponse(resp))
	if text == "" {
		return "", fmt.Errorf("gemini generate: %w", ErrEmptyResponse)
	}
	return text, nil
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return estimateTokens(extractTextFromResponse(resp))
}

// extractTextFromResponse joins the text parts of the first candidate
func extractTextFromResponse(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result.WriteString(string(text))
		}
	}
	return result.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
