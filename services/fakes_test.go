package services

import (
	"context"
	"math"
	"sync"

	"disclosure-rag/internal/config"
)

// fakeGenerator replays canned responses and counts calls
type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)

	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", nil
}

func (g *fakeGenerator) Model() string { return "fake-model" }

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeEmbedder looks vectors up by text; unknown text fails with an empty vector
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func newFakeEmbedder(vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{vectors: vectors}
}

func (e *fakeEmbedder) lookup(text string) []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return []float32{}
}

func (e *fakeEmbedder) EmbedDocument(ctx context.Context, text string) []float32 { return e.lookup(text) }
func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) []float32    { return e.lookup(text) }
func (e *fakeEmbedder) Model() string                                           { return "fake-embedding" }

// unitAt returns a 2-d unit vector whose cosine to [1, 0] is sim
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func testConfig() *config.Config {
	return &config.Config{
		ClassifierStrategy:      "gemini",
		MaxChunkSize:            1000,
		LanguageSampleChars:     2000,
		ClassifierMaxInputChars: 100000,
		MatchThreshold:          0.7,
		QAMaxChunks:             5,
		StoreBackend:            config.BackendMemory,
	}
}
