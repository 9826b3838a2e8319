package services

import (
	"strings"
	"unicode"

	"disclosure-rag/models"
)

// Heading level sets. Documents are cut at ## and ###; the phase view at # and ##.
var (
	DocumentHeadingLevels = []int{2, 3}
	PhaseHeadingLevels    = []int{1, 2}
)

// Segmenter splits markdown-like text into heading-bounded sections
type Segmenter struct {
	levels map[int]bool
}

// NewSegmenter creates a segmenter that treats the given marker counts as headings
func NewSegmenter(levels ...int) *Segmenter {
	if len(levels) == 0 {
		levels = DocumentHeadingLevels
	}
	set := make(map[int]bool, len(levels))
	for _, l := range levels {
		set[l] = true
	}
	return &Segmenter{levels: set}
}

// Segment returns sections in document order. Text before the first heading
// becomes a section with an empty heading unless it is blank.
func (s *Segmenter) Segment(text string) []models.Section {
	sections := []models.Section{}
	if strings.TrimSpace(text) == "" {
		return sections
	}

	heading := ""
	seenHeading := false
	var body strings.Builder

	flush := func() {
		content := strings.TrimSpace(body.String())
		body.Reset()
		if !seenHeading && content == "" {
			return
		}
		sections = append(sections, models.Section{Heading: heading, Body: content})
	}

	for _, line := range strings.Split(text, "\n") {
		if h, ok := s.headingText(line); ok {
			flush()
			heading = h
			seenHeading = true
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()

	return sections
}

// headingText reports whether line opens a section and returns its text
func (s *Segmenter) headingText(line string) (string, bool) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || !s.levels[n] || n == len(line) {
		return "", false
	}
	if !unicode.IsSpace(rune(line[n])) {
		return "", false
	}
	return strings.TrimSpace(line[n:]), true
}
