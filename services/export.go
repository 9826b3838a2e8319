package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"disclosure-rag/internal/logger"
	"disclosure-rag/models"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// WorkbookPath is where WritePhaseWorkbook puts a document's workbook
func (w *ArtifactWriter) WorkbookPath(pdfName string) string {
	return filepath.Join(w.outputDir, pdfName+"_LEAP.xlsx")
}

// WritePhaseWorkbook saves the phase view as <pdf>_LEAP.xlsx
func (w *ArtifactWriter) WritePhaseWorkbook(pdfName string, c models.Classification) (string, error) {
	path := w.WorkbookPath(pdfName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}

	f, err := buildPhaseWorkbook(pdfName, c)
	if err != nil {
		return "", err
	}
	defer closeWorkbook(f)

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// WritePhaseWorkbookTo streams the workbook, for HTTP downloads
func WritePhaseWorkbookTo(out io.Writer, pdfName string, c models.Classification) error {
	f, err := buildPhaseWorkbook(pdfName, c)
	if err != nil {
		return err
	}
	defer closeWorkbook(f)
	return f.Write(out)
}

// buildPhaseWorkbook lays out a summary sheet followed by one sheet per phase
func buildPhaseWorkbook(pdfName string, c models.Classification) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		closeWorkbook(f)
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9EAD3"}, Pattern: 1},
	})
	if err != nil {
		closeWorkbook(f)
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		closeWorkbook(f)
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	summary := [][]interface{}{
		{"Document", pdfName},
		{"Status", c.Status},
		{"Strategy", c.Strategy},
		{"Language", c.Language},
		{"Reason", c.Reason},
		{},
		{"Phase", "Name", "Sections"},
	}
	for _, phase := range models.Phases {
		summary = append(summary, []interface{}{string(phase), phase.Name(), len(c.Assignment[phase])})
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			closeWorkbook(f)
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}
	f.SetCellStyle(summarySheet, "A7", "C7", headerStyle)
	f.SetColWidth(summarySheet, "A", "A", 12)
	f.SetColWidth(summarySheet, "B", "B", 40)

	for _, phase := range models.Phases {
		sheet := fmt.Sprintf("%s - %s", phase, phase.Name())
		if _, err := f.NewSheet(sheet); err != nil {
			closeWorkbook(f)
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}

		f.SetSheetRow(sheet, "A1", &[]interface{}{"#", "Heading", "Content"})
		f.SetCellStyle(sheet, "A1", "C1", headerStyle)
		f.SetColWidth(sheet, "A", "A", 6)
		f.SetColWidth(sheet, "B", "B", 40)
		f.SetColWidth(sheet, "C", "C", 100)

		blocks := c.Assignment[phase]
		if len(blocks) == 0 {
			f.SetCellValue(sheet, "C2", EmptyPhaseMarker(phase, c.Language))
			continue
		}
		for i, block := range blocks {
			heading, content := splitBlockHeading(block)
			row := i + 2
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), i+1)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), heading)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), content)
			f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row), wrapStyle)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// splitBlockHeading recovers the heading of model blocks, which carry it
// inline as a leading "### " line
func splitBlockHeading(block models.PhaseBlock) (string, string) {
	if block.Heading != "" {
		return block.Heading, block.Content
	}
	first, rest, _ := strings.Cut(block.Content, "\n")
	if strings.HasPrefix(first, "#") {
		return strings.TrimSpace(strings.TrimLeft(first, "#")), strings.TrimSpace(rest)
	}
	return "", block.Content
}

func closeWorkbook(f *excelize.File) {
	if err := f.Close(); err != nil {
		logger.Warn("Error closing Excel file", "error", err)
	}
}
