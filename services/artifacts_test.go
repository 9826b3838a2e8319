package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"disclosure-rag/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceImagePlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		count int
		want  string
	}{
		{
			name:  "replaces in order",
			text:  "a<!-- image -->b<!-- image -->c",
			count: 2,
			want:  "a\n\n![Image 1](report_images/image_001.png)\n\nb\n\n![Image 2](report_images/image_002.png)\n\nc",
		},
		{
			name:  "leaves extra placeholders",
			text:  "a<!-- image -->b<!-- image -->",
			count: 1,
			want:  "a\n\n![Image 1](report_images/image_001.png)\n\nb<!-- image -->",
		},
		{
			name:  "more images than placeholders",
			text:  "a<!-- image -->",
			count: 3,
			want:  "a\n\n![Image 1](report_images/image_001.png)\n\n",
		},
		{
			name:  "no images",
			text:  "a<!-- image -->",
			count: 0,
			want:  "a<!-- image -->",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceImagePlaceholders(tt.text, "report", tt.count))
		})
	}
}

func TestRenderPhaseFile(t *testing.T) {
	t.Run("blocks joined by blank line", func(t *testing.T) {
		got := RenderPhaseFile("report", models.PhaseLocate, []models.PhaseBlock{
			{Heading: "Location", Content: "Sites."},
			{Content: "### Basins\n\nThree basins."},
		}, LanguageEnglish)
		assert.Equal(t, "# report - LEAP Phase: Locate\n\n---\n\n### Location\n\nSites.\n\n### Basins\n\nThree basins.", got)
	})

	t.Run("empty english phase", func(t *testing.T) {
		got := RenderPhaseFile("report", models.PhaseAssess, nil, LanguageEnglish)
		assert.Equal(t, "# report - LEAP Phase: Assess\n\n---\n\n*No content identified for Assess phase*\n", got)
	})

	t.Run("empty japanese phase", func(t *testing.T) {
		got := RenderPhaseFile("報告書", models.PhasePrepare, nil, LanguageJapanese)
		assert.Equal(t, "# 報告書 - LEAP Phase: Prepare\n\n---\n\n*Prepareフェーズに該当する内容は見つかりませんでした*\n", got)
	})
}

func TestArtifactWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir)

	path, err := w.WriteFullText("report", "## Intro\n\nBody")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_full_text.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# report\n\n---\n\n## Intro\n\nBody", string(data))

	text, err := w.ReadFullText("report")
	require.NoError(t, err)
	assert.Equal(t, "## Intro\n\nBody", text)

	_, err = w.ReadFullText("missing")
	assert.ErrorIs(t, err, ErrInputNotFound)

	imgPath, err := w.WriteImage("report", 7, []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_images", "image_007.png"), imgPath)

	assignment := models.NewPhaseAssignment()
	assignment[models.PhaseEvaluate] = []models.PhaseBlock{{Heading: "Dependencies", Content: "Water."}}
	files, err := w.WritePhaseFiles("report", assignment, LanguageEnglish)
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, phase := range models.Phases {
		data, err := os.ReadFile(files[phase])
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "# report - LEAP Phase: "+phase.Name()))
	}
	assert.Equal(t, filepath.Join(dir, "report_E.md"), files[models.PhaseEvaluate])
}
