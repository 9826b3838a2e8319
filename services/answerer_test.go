package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"disclosure-rag/internal/database"
	"disclosure-rag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qaFixture struct {
	store     *StoreAdapter
	retriever *Retriever
	embedder  *fakeEmbedder
}

func newQAFixture(t *testing.T, backend database.Backend) *qaFixture {
	t.Helper()
	embedder := newFakeEmbedder(map[string][]float32{
		"What sites are covered?": {1, 0},
		"Our sites":               unitAt(0.99),
		"Water basins":            unitAt(0.9),
		"Unrelated":               {0, 1},
	})
	store := NewStoreAdapter(backend, embedder, testConfig(), nil)
	return &qaFixture{store: store, retriever: NewRetriever(store, testConfig()), embedder: embedder}
}

func (f *qaFixture) seed(t *testing.T, filename string, images int, chunks ...models.Chunk) {
	t.Helper()
	imgs := make([]models.Image, images)
	for i := range imgs {
		imgs[i] = models.Image{Filename: models.ImageFilename(i + 1), Caption: models.ImageCaption(i + 1)}
	}
	_, err := f.store.StoreDocument(context.Background(), filename, "text", chunks, imgs)
	require.NoError(t, err)
}

func TestRetriever_EmptyStore(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	got := f.retriever.Retrieve(context.Background(), "What sites are covered?", 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetriever_AttachesDocumentImages(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	f.seed(t, "a.pdf", 3, models.Chunk{Heading: "Location", Text: "Our sites"}, models.Chunk{Heading: "Water", Text: "Water basins"})
	f.seed(t, "b.pdf", 0, models.Chunk{Heading: "Other", Text: "Unrelated"})

	got := f.retriever.Retrieve(context.Background(), "What sites are covered?", 5)

	require.Len(t, got, 2)
	assert.Equal(t, "Our sites", got[0].Chunk.Text)
	assert.Equal(t, "Water basins", got[1].Chunk.Text)
	assert.Len(t, got[0].Images, 3)
	assert.Len(t, got[1].Images, 3)
}

func TestRetriever_BackendErrorYieldsEmpty(t *testing.T) {
	backend := &failingBackend{MemoryStore: database.NewMemoryStore()}
	f := newQAFixture(t, backend)
	f.seed(t, "a.pdf", 0, models.Chunk{Text: "Our sites"})
	backend.failOn = "match_chunks"

	got := f.retriever.Retrieve(context.Background(), "What sites are covered?", 5)
	assert.Empty(t, got)
}

func TestAnswerer_NoInformationSkipsGeneration(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	gen := &fakeGenerator{responses: []string{`{"answer": "should not be used"}`}}
	answerer := NewAnswerer(f.retriever, gen, testConfig(), nil)

	got := answerer.Answer(context.Background(), "What sites are covered?", 0)

	assert.Equal(t, NoInformationAnswer, got.Answer)
	assert.Equal(t, models.ConfidenceLow, got.Confidence)
	assert.Empty(t, got.Sources)
	assert.Empty(t, got.Images)
	assert.Zero(t, got.ChunksUsed)
	assert.Zero(t, gen.Calls())
}

func TestAnswerer_StructuredAnswer(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	f.seed(t, "a.pdf", 1, models.Chunk{Heading: "Location", Text: "Our sites"}, models.Chunk{Text: "Water basins"})
	gen := &fakeGenerator{responses: []string{
		"```json\n{\"answer\": \"Three basins.\", \"sources\": [\"Location\"], \"confidence\": \"HIGH\"}\n```",
	}}
	answerer := NewAnswerer(f.retriever, gen, testConfig(), nil)

	got := answerer.Answer(context.Background(), "What sites are covered?", 0)

	assert.Equal(t, "Three basins.", got.Answer)
	assert.Equal(t, []string{"Location"}, got.Sources)
	assert.Equal(t, models.ConfidenceHigh, got.Confidence)
	assert.Equal(t, 2, got.ChunksUsed)
	assert.Len(t, got.Images, 2, "one document image attached to each of two chunks")

	require.Equal(t, 1, gen.Calls())
	prompt := gen.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, qaSystemPrompt+"\n\nQuestion: What sites are covered?\n\nContext:\n"))
	assert.Contains(t, prompt, "--- Context 1 (from a.pdf) ---\nSection: Location\nContent: Our sites\n")
	assert.Contains(t, prompt, "--- Context 2 (from a.pdf) ---\nSection: Untitled Section\nContent: Water basins\n")
	assert.True(t, strings.HasSuffix(prompt, "\n\nProvide your answer as a JSON object."))
}

func TestAnswerer_NormalizesModelFields(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	f.seed(t, "a.pdf", 0, models.Chunk{Heading: "Location", Text: "Our sites"})
	gen := &fakeGenerator{responses: []string{`{"confidence": "certain"}`}}

	got := NewAnswerer(f.retriever, gen, testConfig(), nil).Answer(context.Background(), "What sites are covered?", 0)

	assert.Equal(t, "No answer generated", got.Answer)
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
	assert.Equal(t, []string{}, got.Sources)
}

func TestAnswerer_PlainTextFallback(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	f.seed(t, "a.pdf", 0, models.Chunk{Heading: "Location", Text: "Our sites"}, models.Chunk{Text: "Water basins"})
	gen := &fakeGenerator{responses: []string{"not json at all", "The sites are in three basins."}}

	got := NewAnswerer(f.retriever, gen, testConfig(), nil).Answer(context.Background(), "What sites are covered?", 0)

	assert.Equal(t, "The sites are in three basins.", got.Answer)
	assert.Equal(t, []string{"Location", "Unknown"}, got.Sources)
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
	assert.Equal(t, 2, got.ChunksUsed)

	require.Equal(t, 2, gen.Calls())
	assert.True(t, strings.HasPrefix(gen.prompts[1], "Answer this question based on the context:\n\nQuestion: What sites are covered?\n\nContext:\n"))
}

func TestAnswerer_BothCallsFail(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	f.seed(t, "a.pdf", 2, models.Chunk{Heading: "Location", Text: "Our sites"})
	gen := &fakeGenerator{errs: []error{errors.New("timeout"), errors.New("quota exceeded")}}

	got := NewAnswerer(f.retriever, gen, testConfig(), nil).Answer(context.Background(), "What sites are covered?", 0)

	assert.Equal(t, "Error generating answer: quota exceeded", got.Answer)
	assert.Equal(t, models.ConfidenceLow, got.Confidence)
	assert.Empty(t, got.Sources)
	assert.Empty(t, got.Images)
	assert.Zero(t, got.ChunksUsed)
}

func TestAnswerer_NilGenerator(t *testing.T) {
	f := newQAFixture(t, database.NewMemoryStore())
	f.seed(t, "a.pdf", 0, models.Chunk{Heading: "Location", Text: "Our sites"})

	got := NewAnswerer(f.retriever, nil, testConfig(), nil).Answer(context.Background(), "What sites are covered?", 0)

	assert.Equal(t, models.ConfidenceLow, got.Confidence)
	assert.True(t, strings.HasPrefix(got.Answer, "Error generating answer: "))
}

func TestCollectImages(t *testing.T) {
	imgs := func(doc string, n int) []models.Image {
		out := make([]models.Image, n)
		for i := range out {
			out[i] = models.Image{Filename: fmt.Sprintf("%s-%d", doc, i)}
		}
		return out
	}
	retrieved := []models.RetrievalResult{
		{Images: imgs("a", 4)},
		{Images: imgs("b", 1)},
		{Images: nil},
		{Images: imgs("c", 3)},
		{Images: imgs("d", 2)},
	}

	got := collectImages(retrieved)

	names := make([]string, len(got))
	for i, img := range got {
		names[i] = img.Filename
	}
	assert.Equal(t, []string{"a-0", "a-1", "b-0", "c-0", "c-1"}, names)
}
