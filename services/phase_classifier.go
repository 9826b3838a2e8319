package services

import (
	"context"
	"encoding/json"
	"errors"
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

const leapPromptTemplate = `Analyze this TNFD report and categorize each section into LEAP framework phases.

LEAP Framework:
- L (Locate): Geographic information, site locations, areas, facilities, biomes, regions, spatial data
- E (Evaluate): Dependencies, impacts, materiality, ecosystem services, environmental effects
- A (Assess): Risks, opportunities, scenarios, financial impacts, climate risks, threats
- P (Prepare): Strategy, targets, indicators, governance, action plans, metrics, goals

Instructions:
1. Read through the entire document
2. Identify distinct sections (by headings)
3. Categorize each section into L, E, A, or P based on its primary focus
4. Return a JSON object with this structure:
{"L": ["section content with heading...", "another section..."], "E": ["section content with heading...", "another section..."], "A": ["section content with heading...", "another section..."], "P": ["section content with heading...", "another section..."]}

Important:
- Include the section heading (as ###) at the start of each categorized content
- Keep the original markdown formatting
- If a section doesn't clearly fit any phase, put it in the most relevant one
- Some sections may span multiple phases - choose the PRIMARY focus

Document to analyze:
{full_text}

Return ONLY the JSON object, no other text.`

var (
	errNoGenerator  = errors.New("no generator configured for strategy")
	errNoPhaseKeys  = errors.New("response contains none of the phase keys")
	errUnknownStrategy = errors.New("unknown classifier strategy")
)

// PhaseClassifier assigns document text to LEAP phases. Model strategies fall
// back to keywords on any failure and report it as a degraded result.
type PhaseClassifier struct {
	generators      map[string]ai.Generator
	keywords        *KeywordClassifier
	defaultStrategy string
	maxInputChars   int
	sampleChars     int
	metrics         *telemetry.Metrics
}

// NewPhaseClassifier wires the model strategies that are available. A nil
// generator for a strategy makes that strategy degrade to keywords.
func NewPhaseClassifier(cfg *config.Config, keywords *KeywordClassifier, generators map[string]ai.Generator, metrics *telemetry.Metrics) *PhaseClassifier {
	available := make(map[string]ai.Generator, len(generators))
	for name, g := range generators {
		if g != nil {
			available[name] = g
		}
	}
	return &PhaseClassifier{
		generators:      available,
		keywords:        keywords,
		defaultStrategy: cfg.ClassifierStrategy,
		maxInputChars:   cfg.ClassifierMaxInputChars,
		sampleChars:     cfg.LanguageSampleChars,
		metrics:         metrics,
	}
}

// Classify never fails. An empty strategy selects the configured default.
func (c *PhaseClassifier) Classify(ctx context.Context, text, strategy string) models.Classification {
	tracer := otel.Tracer("phase-classifier")
	ctx, span := tracer.Start(ctx, "leap.classify")
	defer span.End()

	if strategy == "" {
		strategy = c.defaultStrategy
	}
	language := DetectLanguage(text, c.sampleChars)
	span.SetAttributes(
		attribute.String("leap.strategy", strategy),
		attribute.String("leap.language", language),
	)

	result := c.classify(ctx, text, strategy, language)
	span.SetAttributes(attribute.String("leap.status", result.Status))
	c.metrics.RecordClassification(result.Strategy, result.Status)
	return result
}

func (c *PhaseClassifier) classify(ctx context.Context, text, strategy, language string) models.Classification {
	if strategy == models.StrategyKeyword {
		return models.Classification{
			Assignment: c.keywords.Classify(text, language),
			Status:     models.ClassificationOK,
			Strategy:   models.StrategyKeyword,
			Language:   language,
		}
	}

	assignment, err := c.classifyWithModel(ctx, text, strategy)
	if err == nil {
		return models.Classification{
			Assignment: assignment,
			Status:     models.ClassificationOK,
			Strategy:   strategy,
			Language:   language,
		}
	}

	logger.Warn("Model classification failed, falling back to keywords",
		"strategy", strategy,
		"error", err,
	)
	return models.Classification{
		Assignment: c.keywords.Classify(text, language),
		Status:     models.ClassificationDegraded,
		Strategy:   models.StrategyKeyword,
		Reason:     fmt.Sprintf("%s: %v", strategy, err),
		Language:   language,
	}
}

func (c *PhaseClassifier) classifyWithModel(ctx context.Context, text, strategy string) (models.PhaseAssignment, error) {
	if strategy != models.StrategyGemini && strategy != models.StrategyPerplexity {
		return nil, fmt.Errorf("%w: %q", errUnknownStrategy, strategy)
	}
	generator, ok := c.generators[strategy]
	if !ok {
		return nil, errNoGenerator
	}

	prompt := BuildLEAPPrompt(truncateRunes(text, c.maxInputChars))
	response, err := generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParsePhaseResponse(response)
}

// BuildLEAPPrompt embeds the document into the categorization instruction
func BuildLEAPPrompt(text string) string {
	return strings.Replace(leapPromptTemplate, "{full_text}", text, 1)
}

// ParsePhaseResponse decodes a model reply into an assignment. Missing phase
// keys become empty lists; a reply with no phase key at all is an error.
func ParsePhaseResponse(response string) (models.PhaseAssignment, error) {
	var raw map[string][]string
	if err := json.Unmarshal([]byte(ai.StripCodeFences(response)), &raw); err != nil {
		return nil, fmt.Errorf("malformed phase JSON: %w", err)
	}

	assignment := models.NewPhaseAssignment()
	found := false
	for _, phase := range models.Phases {
		blocks, ok := raw[string(phase)]
		if !ok {
			continue
		}
		found = true
		for _, content := range blocks {
			if content = strings.TrimSpace(content); content != "" {
				assignment[phase] = append(assignment[phase], models.PhaseBlock{Content: content})
			}
		}
	}
	if !found {
		return nil, errNoPhaseKeys
	}
	return assignment, nil
}

// truncateRunes keeps at most n runes of s. n <= 0 means no limit.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
