package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"disclosure-rag/models"
)

// DefaultChunkSize is the target chunk length in characters
const DefaultChunkSize = 1000

const paragraphSeparator = "\n\n"

// Chunker splits section bodies into bounded retrieval units on paragraph boundaries
type Chunker struct {
	maxChunkSize   int
	paragraphRegex *regexp.Regexp
}

// NewChunker creates a chunker. Non-positive sizes fall back to DefaultChunkSize.
func NewChunker(maxChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	return &Chunker{
		maxChunkSize:   maxChunkSize,
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// MaxChunkSize returns the configured target size
func (c *Chunker) MaxChunkSize() int {
	return c.maxChunkSize
}

// Chunk turns sections into chunks with indexes assigned across the whole
// document. A paragraph longer than the target is emitted whole.
func (c *Chunker) Chunk(sections []models.Section) []models.Chunk {
	chunks := []models.Chunk{}
	for _, section := range sections {
		for _, text := range c.splitBody(section.Body) {
			chunks = append(chunks, models.Chunk{
				Index:   len(chunks),
				Heading: section.Heading,
				Text:    text,
			})
		}
	}
	return chunks
}

func (c *Chunker) splitBody(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if utf8.RuneCountInString(body) <= c.maxChunkSize {
		return []string{body}
	}

	paragraphs := filterEmpty(c.paragraphRegex.Split(body, -1))

	var texts []string
	var current strings.Builder
	currentSize := 0
	sepSize := utf8.RuneCountInString(paragraphSeparator)

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		paraSize := utf8.RuneCountInString(paragraph)

		if current.Len() > 0 && currentSize+sepSize+paraSize > c.maxChunkSize {
			texts = append(texts, current.String())
			current.Reset()
			currentSize = 0
		}

		if current.Len() > 0 {
			current.WriteString(paragraphSeparator)
			currentSize += sepSize
		}
		current.WriteString(paragraph)
		currentSize += paraSize
	}

	if current.Len() > 0 {
		texts = append(texts, current.String())
	}
	return texts
}

// filterEmpty removes blank strings from slice
func filterEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if len(strings.TrimSpace(s)) > 0 {
			result = append(result, s)
		}
	}
	return result
}
