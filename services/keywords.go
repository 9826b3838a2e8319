package services

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"disclosure-rag/models"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// KeywordLists maps a language tag to the heading keywords of each phase
type KeywordLists map[string]map[models.Phase][]string

// LoadKeywordLists returns the built-in lists, with any language defined in
// the file at path replacing the built-in entry for that language.
func LoadKeywordLists(path string) (KeywordLists, error) {
	lists, err := parseKeywordLists(defaultKeywordsYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in keywords: %w", err)
	}
	if path == "" {
		return lists, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	override, err := parseKeywordLists(data)
	if err != nil {
		return nil, fmt.Errorf("keywords file %s: %w", path, err)
	}
	for lang, phases := range override {
		lists[lang] = phases
	}
	return lists, nil
}

func parseKeywordLists(data []byte) (KeywordLists, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	lists := make(KeywordLists, len(raw))
	for lang, phases := range raw {
		byPhase := make(map[models.Phase][]string, len(models.Phases))
		for key, words := range phases {
			phase := models.Phase(strings.ToUpper(key))
			if !isPhase(phase) {
				return nil, fmt.Errorf("language %q: unknown phase %q", lang, key)
			}
			normalized := make([]string, 0, len(words))
			for _, w := range words {
				if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
					normalized = append(normalized, w)
				}
			}
			byPhase[phase] = normalized
		}
		lists[lang] = byPhase
	}
	return lists, nil
}

func isPhase(p models.Phase) bool {
	for _, known := range models.Phases {
		if p == known {
			return true
		}
	}
	return false
}

// KeywordClassifier is the deterministic phase strategy
type KeywordClassifier struct {
	lists     KeywordLists
	segmenter *Segmenter
}

func NewKeywordClassifier(lists KeywordLists) *KeywordClassifier {
	return &KeywordClassifier{
		lists:     lists,
		segmenter: NewSegmenter(PhaseHeadingLevels...),
	}
}

// MatchPhase returns the first phase, in L, E, A, P order, with a keyword
// contained in the lower-cased heading
func (k *KeywordClassifier) MatchPhase(heading, language string) (models.Phase, bool) {
	lists, ok := k.lists[language]
	if !ok {
		lists = k.lists[LanguageEnglish]
	}

	lower := strings.ToLower(heading)
	for _, phase := range models.Phases {
		for _, kw := range lists[phase] {
			if strings.Contains(lower, kw) {
				return phase, true
			}
		}
	}
	return "", false
}

// Classify segments text at # and ## headings and assigns each section to at
// most one phase. Sections without a heading, without a body or without a
// matching keyword are dropped.
func (k *KeywordClassifier) Classify(text, language string) models.PhaseAssignment {
	assignment := models.NewPhaseAssignment()
	for _, section := range k.segmenter.Segment(text) {
		if section.Heading == "" || section.Body == "" {
			continue
		}
		phase, ok := k.MatchPhase(section.Heading, language)
		if !ok {
			continue
		}
		assignment[phase] = append(assignment[phase], models.PhaseBlock{
			Heading: section.Heading,
			Content: section.Body,
		})
	}
	return assignment
}
