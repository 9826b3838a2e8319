package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askMaxChunks int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the stored documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askMaxChunks, "chunks", "k", 0, "chunks to retrieve (default from QA_MAX_CHUNKS)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	answer := pipeline.Answerer.Answer(cmd.Context(), question, askMaxChunks)

	if jsonOutput {
		return printJSON(cmd, answer)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Answer)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Confidence: %s (%d chunks)\n", answer.Confidence, answer.ChunksUsed)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(out, "Sources: %s\n", strings.Join(answer.Sources, "; "))
	}
	for _, img := range answer.Images {
		fmt.Fprintf(out, "Image: %s (%s)\n", img.Filename, img.DocumentID)
	}
	return nil
}
