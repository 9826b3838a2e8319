package cli

import (
	"fmt"

	"disclosure-rag/models"

	"github.com/spf13/cobra"
)

var (
	processStrategy   string
	processXLSX       bool
	processCategorize bool
)

var processCmd = &cobra.Command{
	Use:   "process [pdf...]",
	Short: "Ingest PDFs and write their LEAP phase files",
	Long: `Extracts each PDF to markdown, saves its images, stores the chunks with
embeddings and, unless --categorize=false, writes the four LEAP phase files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processStrategy, "strategy", "s", "", "classification strategy: gemini, perplexity or keyword")
	processCmd.Flags().BoolVar(&processXLSX, "xlsx", false, "also write the phase workbook")
	processCmd.Flags().BoolVar(&processCategorize, "categorize", true, "write LEAP phase files after ingestion")
	rootCmd.AddCommand(processCmd)
}

type processResult struct {
	Ingest     *models.IngestResult       `json:"ingest"`
	Categorize *models.CategorizeResponse `json:"categorize,omitempty"`
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	results := make([]processResult, 0, len(args))

	for _, path := range args {
		ingested, err := pipeline.Ingestor.Ingest(ctx, path)
		if err != nil {
			return err
		}
		result := processResult{Ingest: ingested}

		if processCategorize {
			resp, err := pipeline.Categorizer.CategorizeStored(ctx, pipeline.Store, ingested.DocumentID, processStrategy, processXLSX)
			if err != nil {
				return err
			}
			result.Categorize = resp
		}
		results = append(results, result)

		if !jsonOutput {
			printProcessResult(cmd, result)
		}
	}

	if jsonOutput {
		return printJSON(cmd, results)
	}
	return nil
}

func printProcessResult(cmd *cobra.Command, r processResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", r.Ingest.Filename, r.Ingest.DocumentID)
	fmt.Fprintf(out, "  chunks: %d (%d embedded), images: %d, language: %s\n",
		r.Ingest.ChunkCount, r.Ingest.Embedded, r.Ingest.ImageCount, r.Ingest.Language)
	if r.Categorize != nil {
		printPhaseCounts(cmd, r.Categorize)
	}
}

func printPhaseCounts(cmd *cobra.Command, resp *models.CategorizeResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  LEAP: %s via %s\n", resp.Status, resp.Strategy)
	if resp.Reason != "" {
		fmt.Fprintf(out, "  reason: %s\n", resp.Reason)
	}
	for _, phase := range models.Phases {
		fmt.Fprintf(out, "  %s %-8s %3d  %s\n", phase, phase.Name(), resp.SectionCounts[phase], resp.Files[phase])
	}
	if resp.WorkbookPath != "" {
		fmt.Fprintf(out, "  workbook: %s\n", resp.WorkbookPath)
	}
}
