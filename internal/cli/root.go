// Package cli is the batch command line: process PDFs, categorize them into
// LEAP phases, ask questions and manage stored documents.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"disclosure-rag/internal/app"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"

	"github.com/spf13/cobra"
)

var (
	storeBackend string
	outputDir    string
	jsonOutput   bool

	pipeline *app.App
)

// newPipeline builds the services for a command run. Tests replace it.
var newPipeline = func(ctx context.Context) (*app.App, error) {
	cfg, keywordOnly, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger.InitCLILogger(cfg, os.Stderr)
	if keywordOnly {
		logger.Warn("GEMINI_API_KEY not set, running keyword-only")
	}
	return app.New(ctx, cfg, app.Options{})
}

var rootCmd = &cobra.Command{
	Use:   "leap",
	Short: "Process disclosure PDFs into LEAP phases and answer questions about them",
	Long: `leap ingests TNFD-style disclosure reports, writes their markdown and
LEAP phase files, and answers questions over the stored chunks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd.Context())
		if err != nil {
			return err
		}
		pipeline = p
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pipeline != nil {
			pipeline.Close()
			pipeline = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "store backend: mongo, postgres or memory (default from STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "artifact folder (default from OUTPUT_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// loadConfig applies flag overrides. Without a Gemini key the run continues
// keyword-only and chunks are stored unsearchable.
func loadConfig() (*config.Config, bool, error) {
	keywordOnly := false
	cfg, err := config.LoadConfig()
	if errors.Is(err, config.ErrMissingGeminiKey) {
		keywordOnly = true
		cfg, err = config.LoadConfigKeywordOnly()
	}
	if err != nil {
		return nil, false, err
	}

	if storeBackend != "" {
		switch storeBackend {
		case config.BackendMongo, config.BackendPostgres, config.BackendMemory:
			cfg.StoreBackend = storeBackend
		default:
			return nil, false, fmt.Errorf("unknown store %q", storeBackend)
		}
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	return cfg, keywordOnly, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
