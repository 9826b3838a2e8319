package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := pipeline.Store.ListDocuments(cmd.Context())
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, docs)
		}

		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			fmt.Fprintln(out, "No documents stored.")
			return nil
		}
		for _, d := range docs {
			fmt.Fprintf(out, "%s  %-40s  %4d chunks  %3d images  %s\n",
				d.ID, d.Filename, d.ChunkCount, d.ImageCount, d.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document with its chunks and images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pipeline.Store.DeleteDocument(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}
