package services

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"disclosure-rag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_SmallBodyIsOneChunk(t *testing.T) {
	chunks := NewChunker(100).Chunk([]models.Section{
		{Heading: "A", Body: "short body"},
		{Heading: "Empty", Body: ""},
		{Heading: "B", Body: "another"},
	})

	require.Len(t, chunks, 2)
	assert.Equal(t, models.Chunk{Index: 0, Heading: "A", Text: "short body"}, chunks[0])
	assert.Equal(t, models.Chunk{Index: 1, Heading: "B", Text: "another"}, chunks[1])
}

func TestChunker_GreedyParagraphPacking(t *testing.T) {
	p1 := strings.Repeat("a", 40)
	p2 := strings.Repeat("b", 40)
	p3 := strings.Repeat("c", 40)
	body := p1 + "\n\n" + p2 + "\n\n\n\n" + p3

	chunks := NewChunker(90).Chunk([]models.Section{{Heading: "H", Body: body}})

	require.Len(t, chunks, 2)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0].Text)
	assert.Equal(t, p3, chunks[1].Text)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "H", c.Heading)
	}
}

func TestChunker_OversizeParagraphEmittedWhole(t *testing.T) {
	long := strings.Repeat("x", 250)
	body := "intro\n\n" + long + "\n\noutro"

	chunks := NewChunker(100).Chunk([]models.Section{{Heading: "H", Body: body}})

	require.Len(t, chunks, 3)
	assert.Equal(t, "intro", chunks[0].Text)
	assert.Equal(t, long, chunks[1].Text)
	assert.Equal(t, "outro", chunks[2].Text)
}

func TestChunker_CountsRunes(t *testing.T) {
	// 30 runes, 90 bytes
	body := strings.Repeat("生", 30)
	chunks := NewChunker(30).Chunk([]models.Section{{Heading: "", Body: body}})
	require.Len(t, chunks, 1)
	assert.Equal(t, body, chunks[0].Text)
}

func TestChunker_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewChunker(0).MaxChunkSize())
	assert.Equal(t, DefaultChunkSize, NewChunker(-5).MaxChunkSize())
}

func TestChunker_PreservesParagraphContent(t *testing.T) {
	text := "Lead in.\n\n## Location\n\n" + strings.Repeat("Sites and facilities. ", 30) +
		"\n\n" + strings.Repeat("River basins. ", 40) +
		"\n\n### Metrics\n\nShort.\n\n\n\n" + strings.Repeat("Water use. ", 120)

	sections := NewSegmenter(DocumentHeadingLevels...).Segment(text)
	chunker := NewChunker(300)
	chunks := chunker.Chunk(sections)

	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	paragraphs := regexp.MustCompile(`\n\n+`)

	var want, got []string
	for _, s := range sections {
		for _, p := range paragraphs.Split(s.Body, -1) {
			if strings.TrimSpace(p) != "" {
				want = append(want, normalize(p))
			}
		}
	}
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
		for _, p := range paragraphs.Split(c.Text, -1) {
			got = append(got, normalize(p))
		}

		if utf8.RuneCountInString(c.Text) > chunker.MaxChunkSize() {
			assert.Len(t, paragraphs.Split(c.Text, -1), 1, "oversize chunk must be a single paragraph")
		}
	}
	assert.Equal(t, want, got)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}
