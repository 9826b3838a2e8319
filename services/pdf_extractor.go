package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"disclosure-rag/internal/logger"

	"github.com/ledongthuc/pdf"
)

// ImagePlaceholder marks where an extracted image sat in the markdown
const ImagePlaceholder = "<!-- image -->"

// ExtractedImage is a figure that can be rendered to PNG bytes
type ExtractedImage interface {
	Render() ([]byte, error)
}

// Extraction is the markdown text of a PDF and its images in document order
type Extraction struct {
	Markdown string
	Images   []ExtractedImage
	Pages    int
	Method   string

	cleanup func()
}

// Close releases temporary files backing the images
func (e *Extraction) Close() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// Extractor turns a PDF on disk into markdown and images
type Extractor interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// PDFExtractor uses poppler (pdftotext, pdfimages) when installed and the
// pure Go reader otherwise. The Go fallback yields no images.
type PDFExtractor struct {
	timeout  time.Duration
	maxBytes int64
}

var _ Extractor = (*PDFExtractor)(nil)

func NewPDFExtractor(maxBytes int64) *PDFExtractor {
	if maxBytes <= 0 {
		maxBytes = 200 << 20
	}
	return &PDFExtractor{timeout: 2 * time.Minute, maxBytes: maxBytes}
}

type pageText struct {
	text   string
	images int
}

// Extract tries each method in order and keeps the first with usable text
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > e.maxBytes {
		return nil, fmt.Errorf("pdf too large for extraction: %d bytes", stat.Size())
	}

	methods := []struct {
		name    string
		extract func(context.Context, string) (*Extraction, error)
	}{
		{"poppler", e.extractWithPoppler},
		{"go-pdf", e.extractWithGoPDF},
	}

	var lastErr error
	for _, method := range methods {
		result, err := method.extract(ctx, path)
		if err != nil {
			logger.Debug("Extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(result.Markdown) == "" {
			result.Close()
			lastErr = fmt.Errorf("%s extracted no text", method.name)
			continue
		}
		result.Method = method.name
		logger.Info("PDF extracted",
			"method", method.name,
			"pages", result.Pages,
			"images", len(result.Images),
			"chars", len(result.Markdown),
		)
		return result, nil
	}

	return nil, fmt.Errorf("all extraction methods failed: %w", lastErr)
}

func (e *PDFExtractor) extractWithPoppler(ctx context.Context, path string) (*Extraction, error) {
	if !hasBinary("pdftotext") {
		return nil, fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := runCommand(extractCtx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}

	// pdftotext separates pages with form feeds
	rawPages := strings.Split(strings.TrimRight(string(out), "\f"), "\f")
	pages := make([]pageText, len(rawPages))
	for i, p := range rawPages {
		pages[i].text = p
	}

	result := &Extraction{Pages: len(pages)}

	if hasBinary("pdfimages") {
		images, cleanup, err := extractImagesWithPoppler(extractCtx, path)
		if err != nil {
			logger.Warn("Image extraction failed, continuing with text only", "error", err)
		} else {
			result.cleanup = cleanup
			for _, img := range images {
				if img.page >= 1 && img.page <= len(pages) {
					pages[img.page-1].images++
				}
				result.Images = append(result.Images, img)
			}
		}
	}

	result.Markdown = pagesToMarkdown(pages)
	return result, nil
}

func (e *PDFExtractor) extractWithGoPDF(ctx context.Context, path string) (*Extraction, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]pageText, 0, numPages)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "page", i, "error", err)
			continue
		}
		pages = append(pages, pageText{text: text})
	}

	return &Extraction{
		Markdown: pagesToMarkdown(pages),
		Pages:    numPages,
	}, nil
}

// fileImage is an image written to disk by pdfimages
type fileImage struct {
	path string
	page int
}

func (f fileImage) Render() ([]byte, error) {
	return os.ReadFile(f.path)
}

// extractImagesWithPoppler lists the images of a PDF and writes them as PNG.
// Masks are skipped; the list numbering matches the output file numbering.
func extractImagesWithPoppler(ctx context.Context, path string) ([]fileImage, func(), error) {
	listing, err := runCommand(ctx, "pdfimages", "-list", path)
	if err != nil {
		return nil, nil, err
	}
	entries := parseImageList(listing)
	if len(entries) == 0 {
		return nil, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "pdfimages-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	prefix := filepath.Join(dir, "img")
	if _, err := runCommand(ctx, "pdfimages", "-png", path, prefix); err != nil {
		cleanup()
		return nil, nil, err
	}

	images := make([]fileImage, 0, len(entries))
	for _, entry := range entries {
		images = append(images, fileImage{
			path: fmt.Sprintf("%s-%03d.png", prefix, entry.num),
			page: entry.page,
		})
	}
	return images, cleanup, nil
}

type imageListEntry struct {
	page int
	num  int
}

// parseImageList reads `pdfimages -list` output:
//
//	page   num  type   width height color comp bpc  enc interp  object ID ...
//	--------------------------------------------------------------------------
//	   1     0 image     100   100  rgb     3   8  image  no        9  0 ...
func parseImageList(listing []byte) []imageListEntry {
	var entries []imageListEntry
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[2] != "image" {
			continue
		}
		page, err1 := strconv.Atoi(fields[0])
		num, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		entries = append(entries, imageListEntry{page: page, num: num})
	}
	return entries
}

var (
	numberedHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+\S`)
	blankLines      = regexp.MustCompile(`\n\s*\n`)
)

// pagesToMarkdown joins pages into paragraphs. Numbered headings become ##
// (### when dotted) and each page's images are marked at the end of the page.
func pagesToMarkdown(pages []pageText) string {
	var b strings.Builder
	for _, p := range pages {
		for _, para := range blankLines.Split(p.text, -1) {
			para = normalizeParagraph(para)
			if para == "" {
				continue
			}
			b.WriteString(markHeading(para))
			b.WriteString("\n\n")
		}
		for i := 0; i < p.images; i++ {
			b.WriteString(ImagePlaceholder)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// normalizeParagraph collapses layout whitespace inside each line
func normalizeParagraph(para string) string {
	lines := strings.Split(para, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func markHeading(para string) string {
	if strings.Contains(para, "\n") || len([]rune(para)) > 80 || strings.HasSuffix(para, ".") {
		return para
	}
	m := numberedHeading.FindStringSubmatch(para)
	if m == nil {
		return para
	}
	if strings.Contains(m[1], ".") {
		return "### " + para
	}
	return "## " + para
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %v, stderr: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// hasBinary checks if a binary executable exists in PATH
func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
