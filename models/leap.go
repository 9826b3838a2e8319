package models

import "fmt"

// Phase is one of the four LEAP categories
type Phase string

const (
	PhaseLocate   Phase = "L"
	PhaseEvaluate Phase = "E"
	PhaseAssess   Phase = "A"
	PhasePrepare  Phase = "P"
)

// Phases lists the categories in priority order
var Phases = []Phase{PhaseLocate, PhaseEvaluate, PhaseAssess, PhasePrepare}

// Name returns the long phase name
func (p Phase) Name() string {
	switch p {
	case PhaseLocate:
		return "Locate"
	case PhaseEvaluate:
		return "Evaluate"
	case PhaseAssess:
		return "Assess"
	case PhasePrepare:
		return "Prepare"
	default:
		return string(p)
	}
}

// PhaseBlock is one categorized piece of text. Model output arrives as a single
// Content string with the heading inline, so Heading may be empty.
type PhaseBlock struct {
	Heading string `json:"heading,omitempty"`
	Content string `json:"content"`
}

// Render formats the block for a phase file
func (b PhaseBlock) Render() string {
	if b.Heading == "" {
		return b.Content
	}
	return fmt.Sprintf("### %s\n\n%s", b.Heading, b.Content)
}

// PhaseAssignment maps every phase to its blocks. Use NewPhaseAssignment so
// all four keys are present.
type PhaseAssignment map[Phase][]PhaseBlock

// NewPhaseAssignment returns an assignment with four empty lists
func NewPhaseAssignment() PhaseAssignment {
	a := make(PhaseAssignment, len(Phases))
	for _, p := range Phases {
		a[p] = []PhaseBlock{}
	}
	return a
}

// Counts returns the number of blocks per phase
func (a PhaseAssignment) Counts() map[Phase]int {
	counts := make(map[Phase]int, len(Phases))
	for _, p := range Phases {
		counts[p] = len(a[p])
	}
	return counts
}

// Classification status values
const (
	ClassificationOK       = "ok"
	ClassificationDegraded = "degraded"
)

// Classification strategies
const (
	StrategyGemini     = "gemini"
	StrategyPerplexity = "perplexity"
	StrategyKeyword    = "keyword"
)

// Classification is the tagged result of phase classification. A Degraded
// result carries the keyword assignment and why the model path was abandoned.
type Classification struct {
	Assignment PhaseAssignment `json:"assignment"`
	Status     string          `json:"status"`
	Strategy   string          `json:"strategy"`
	Reason     string          `json:"reason,omitempty"`
	Language   string          `json:"language"`
}

// Degraded reports whether the fallback strategy produced the result
func (c Classification) Degraded() bool {
	return c.Status == ClassificationDegraded
}

// CategorizeRequest selects the document and strategy for a categorization
type CategorizeRequest struct {
	DocumentID string `json:"document_id" form:"document_id"`
	Strategy   string `json:"strategy" form:"strategy"`
	ExportXLSX bool   `json:"export_xlsx" form:"export_xlsx"`
}

// CategorizeResponse reports a categorization run
type CategorizeResponse struct {
	PDFName       string           `json:"pdf_name"`
	Status        string           `json:"status"`
	Strategy      string           `json:"strategy"`
	Reason        string           `json:"reason,omitempty"`
	Language      string           `json:"language"`
	SectionCounts map[Phase]int    `json:"section_counts"`
	Files         map[Phase]string `json:"files"`
	WorkbookPath  string           `json:"workbook_path,omitempty"`
}
