package services

import (
	"os"
	"path/filepath"
	"testing"

	"disclosure-rag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeywordClassifier(t *testing.T) *KeywordClassifier {
	t.Helper()
	lists, err := LoadKeywordLists("")
	require.NoError(t, err)
	return NewKeywordClassifier(lists)
}

func TestKeywordClassifier_LocationAndStrategy(t *testing.T) {
	k := newTestKeywordClassifier(t)
	text := "## Location\nOur sites span three river basins.\n\n## Strategy and Targets\nWe commit to no net loss by 2030."

	got := k.Classify(text, LanguageEnglish)

	require.Len(t, got[models.PhaseLocate], 1)
	require.Len(t, got[models.PhasePrepare], 1)
	assert.Empty(t, got[models.PhaseEvaluate])
	assert.Empty(t, got[models.PhaseAssess])

	assert.Equal(t, "### Location\n\nOur sites span three river basins.", got[models.PhaseLocate][0].Render())
	assert.Equal(t, "### Strategy and Targets\n\nWe commit to no net loss by 2030.", got[models.PhasePrepare][0].Render())
}

func TestKeywordClassifier_PriorityAndDrops(t *testing.T) {
	k := newTestKeywordClassifier(t)
	text := "Preamble without heading\n" +
		"# Site Risk Assessment\nmatches L, A and P keywords\n" +
		"## Ecosystem Impact\nE wins over A\n" +
		"## Acknowledgements\nno keyword\n" +
		"## Governance\n\n" +
		"### Biome detail\nlevel three stays in the body above"

	got := k.Classify(text, LanguageEnglish)

	require.Len(t, got[models.PhaseLocate], 1)
	assert.Equal(t, "Site Risk Assessment", got[models.PhaseLocate][0].Heading)
	require.Len(t, got[models.PhaseEvaluate], 1)
	assert.Equal(t, "Ecosystem Impact", got[models.PhaseEvaluate][0].Heading)
	assert.Empty(t, got[models.PhaseAssess])
	// ### is not a boundary here, so that line stays in the Governance body
	require.Len(t, got[models.PhasePrepare], 1)
	assert.Contains(t, got[models.PhasePrepare][0].Content, "### Biome detail")
}

func TestKeywordClassifier_Deterministic(t *testing.T) {
	k := newTestKeywordClassifier(t)
	text := "## Region overview\na\n## Dependencies\nb\n## Scenario analysis\nc\n## Metrics\nd\n## Misc\ne"

	first := k.Classify(text, LanguageEnglish)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, k.Classify(text, LanguageEnglish))
	}
	for _, p := range models.Phases {
		assert.Contains(t, first, p)
		assert.Len(t, first[p], 1)
	}
}

func TestKeywordClassifier_Japanese(t *testing.T) {
	k := newTestKeywordClassifier(t)
	text := "## 事業拠点の所在\n国内外の工場\n## 自然への依存と影響\n水資源\n## リスクと機会\n洪水\n## 戦略と目標\n2030年目標"

	got := k.Classify(text, LanguageJapanese)

	assert.Len(t, got[models.PhaseLocate], 1)
	assert.Len(t, got[models.PhaseEvaluate], 1)
	assert.Len(t, got[models.PhaseAssess], 1)
	assert.Len(t, got[models.PhasePrepare], 1)
}

func TestKeywordClassifier_UnknownLanguageUsesEnglish(t *testing.T) {
	k := newTestKeywordClassifier(t)
	phase, ok := k.MatchPhase("Facility list", "fr")
	require.True(t, ok)
	assert.Equal(t, models.PhaseLocate, phase)

	_, ok = k.MatchPhase("Appendix", LanguageEnglish)
	assert.False(t, ok)
}

func TestLoadKeywordLists_Override(t *testing.T) {
	dir := t.TempDir()

	t.Run("replaces the listed language only", func(t *testing.T) {
		path := filepath.Join(dir, "keywords.yaml")
		require.NoError(t, os.WriteFile(path, []byte("en:\n  l: [Watershed]\n  p: [roadmap]\n"), 0o644))

		lists, err := LoadKeywordLists(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"watershed"}, lists[LanguageEnglish][models.PhaseLocate])
		assert.Empty(t, lists[LanguageEnglish][models.PhaseEvaluate])
		assert.NotEmpty(t, lists[LanguageJapanese][models.PhaseLocate])

		k := NewKeywordClassifier(lists)
		phase, ok := k.MatchPhase("Watershed mapping", LanguageEnglish)
		require.True(t, ok)
		assert.Equal(t, models.PhaseLocate, phase)
		_, ok = k.MatchPhase("Location", LanguageEnglish)
		assert.False(t, ok)
	})

	t.Run("unknown phase", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("en:\n  X: [foo]\n"), 0o644))
		_, err := LoadKeywordLists(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadKeywordLists(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
