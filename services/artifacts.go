package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"disclosure-rag/models"
)

// ArtifactWriter writes the per-document markdown and image files into one
// output folder
type ArtifactWriter struct {
	outputDir string
}

func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir}
}

func (w *ArtifactWriter) OutputDir() string {
	return w.outputDir
}

// ImagesDirName is the folder holding a document's images, relative to the output folder
func ImagesDirName(pdfName string) string {
	return pdfName + "_images"
}

// ReplaceImagePlaceholders swaps placeholders for numbered image references in
// order, at most count of them. Extra placeholders are left as they are.
func ReplaceImagePlaceholders(text, pdfName string, count int) string {
	for n := 1; n <= count; n++ {
		if !strings.Contains(text, ImagePlaceholder) {
			break
		}
		ref := fmt.Sprintf("\n\n![%s](%s/%s)\n\n", models.ImageCaption(n), ImagesDirName(pdfName), models.ImageFilename(n))
		text = strings.Replace(text, ImagePlaceholder, ref, 1)
	}
	return text
}

// WriteImage stores the n-th (1-based) image and returns its path
func (w *ArtifactWriter) WriteImage(pdfName string, n int, data []byte) (string, error) {
	dir := filepath.Join(w.outputDir, ImagesDirName(pdfName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create images folder: %w", err)
	}
	path := filepath.Join(dir, models.ImageFilename(n))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// FullTextPath is where WriteFullText puts a document's markdown
func (w *ArtifactWriter) FullTextPath(pdfName string) string {
	return filepath.Join(w.outputDir, pdfName+"_full_text.md")
}

func (w *ArtifactWriter) WriteFullText(pdfName, text string) (string, error) {
	content := fmt.Sprintf("# %s\n\n---\n\n%s", pdfName, text)
	path := w.FullTextPath(pdfName)
	if err := w.write(path, content); err != nil {
		return "", err
	}
	return path, nil
}

// ReadFullText loads a previously written full-text file without its header
func (w *ArtifactWriter) ReadFullText(pdfName string) (string, error) {
	data, err := os.ReadFile(w.FullTextPath(pdfName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrInputNotFound, w.FullTextPath(pdfName))
		}
		return "", err
	}
	header := fmt.Sprintf("# %s\n\n---\n\n", pdfName)
	return strings.TrimPrefix(string(data), header), nil
}

// EmptyPhaseMarker is written when a phase has no blocks
func EmptyPhaseMarker(phase models.Phase, language string) string {
	if language == LanguageJapanese {
		return fmt.Sprintf("*%sフェーズに該当する内容は見つかりませんでした*", phase.Name())
	}
	return fmt.Sprintf("*No content identified for %s phase*", phase.Name())
}

// RenderPhaseFile builds the markdown of one phase file
func RenderPhaseFile(pdfName string, phase models.Phase, blocks []models.PhaseBlock, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - LEAP Phase: %s\n\n---\n\n", pdfName, phase.Name())

	if len(blocks) == 0 {
		b.WriteString(EmptyPhaseMarker(phase, language))
		b.WriteString("\n")
		return b.String()
	}

	rendered := make([]string, len(blocks))
	for i, block := range blocks {
		rendered[i] = block.Render()
	}
	b.WriteString(strings.Join(rendered, "\n\n"))
	return b.String()
}

// PhaseFilePath is where WritePhaseFiles puts one phase
func (w *ArtifactWriter) PhaseFilePath(pdfName string, phase models.Phase) string {
	return filepath.Join(w.outputDir, fmt.Sprintf("%s_%s.md", pdfName, phase))
}

// WritePhaseFiles writes all four phase files, empty phases included
func (w *ArtifactWriter) WritePhaseFiles(pdfName string, assignment models.PhaseAssignment, language string) (map[models.Phase]string, error) {
	files := make(map[models.Phase]string, len(models.Phases))
	for _, phase := range models.Phases {
		path := w.PhaseFilePath(pdfName, phase)
		if err := w.write(path, RenderPhaseFile(pdfName, phase, assignment[phase], language)); err != nil {
			return nil, err
		}
		files[phase] = path
	}
	return files, nil
}

func (w *ArtifactWriter) write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
