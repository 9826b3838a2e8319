package cli

import (
	"fmt"
	"path/filepath"

	"disclosure-rag/models"
	"disclosure-rag/services"

	"github.com/spf13/cobra"
)

var (
	categorizeStrategy string
	categorizeXLSX     bool
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize [document]",
	Short: "Write LEAP phase files for a processed document",
	Long: `Classifies a document into the Locate, Evaluate, Assess and Prepare phases.
The document is a stored id, a stored filename, or the name of a PDF whose
full-text markdown already sits in the output folder.`,
	Args: cobra.ExactArgs(1),
	RunE: runCategorize,
}

func init() {
	categorizeCmd.Flags().StringVarP(&categorizeStrategy, "strategy", "s", "", "classification strategy: gemini, perplexity or keyword")
	categorizeCmd.Flags().BoolVar(&categorizeXLSX, "xlsx", false, "also write the phase workbook")
	rootCmd.AddCommand(categorizeCmd)
}

func runCategorize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ref := args[0]

	pdfName, text, err := resolveDocumentText(cmd, ref)
	if err != nil {
		return err
	}

	resp, _, err := pipeline.Categorizer.Categorize(ctx, pdfName, text, categorizeStrategy, categorizeXLSX)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd, resp)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pdfName)
	printPhaseCounts(cmd, resp)
	return nil
}

// resolveDocumentText tries the stored id, the stored filename, then the
// full-text artifact
func resolveDocumentText(cmd *cobra.Command, ref string) (string, string, error) {
	ctx := cmd.Context()

	for _, lookup := range []func() (*models.Document, error){
		func() (*models.Document, error) { return pipeline.Store.GetDocument(ctx, ref) },
		func() (*models.Document, error) { return pipeline.Store.GetDocumentByFilename(ctx, filepath.Base(ref)) },
	} {
		doc, err := lookup()
		if err == nil {
			return services.PDFName(doc.Filename), doc.FullText, nil
		}
		if !services.IsNotFound(err) {
			return "", "", err
		}
	}

	pdfName := services.PDFName(ref)
	text, err := pipeline.Ingestor.Artifacts().ReadFullText(pdfName)
	if err != nil {
		return "", "", fmt.Errorf("document %s: %w", ref, err)
	}
	return pdfName, text, nil
}
