package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/checkpoint"
	"github.com/fyrsmithlabs/jobflow/internal/config"
	"github.com/fyrsmithlabs/jobflow/internal/engine"
	"github.com/fyrsmithlabs/jobflow/internal/extractor"
	"github.com/fyrsmithlabs/jobflow/internal/retry"
	"github.com/fyrsmithlabs/jobflow/internal/state"
	"github.com/fyrsmithlabs/jobflow/internal/steps"
)

var (
	runMediaType string
	runHints     []string
)

// runCmd extracts a document in-process, without a server.
var runCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Run a full extraction locally",
	Long: `Run the extraction workflow against a local document and print the
resulting state as JSON.

Examples:
  # Extract a job description
  jobflow run posting.pdf

  # Override the detected media type and pass hints
  jobflow run posting.txt --media-type text/plain --hint company=Acme`,
	Args: cobra.ExactArgs(1),
	RunE: runLocal,
}

func init() {
	runCmd.Flags().StringVar(&runMediaType, "media-type", "", "document media type (detected from extension when empty)")
	runCmd.Flags().StringArrayVar(&runHints, "hint", nil, "extraction hint as key=value (repeatable)")
}

func runLocal(cmd *cobra.Command, args []string) error {
	location := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	mediaType := runMediaType
	if mediaType == "" {
		mediaType = detectMediaType(location)
	}
	hints, err := parseHints(runHints)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	extractors, err := extractor.NewExtractors(cfg.Extraction, logger)
	if err != nil {
		return fmt.Errorf("create extractors: %w", err)
	}
	policy := retry.Policy{
		MaxRetries:  cfg.Retry.MaxRetries,
		MinScore:    cfg.Retry.MinScore,
		BaseBackoff: cfg.Retry.BaseBackoff,
	}
	registry := steps.NewRegistry(extractors, policy, logger)

	// One-shot runs keep state in memory; nothing to resume afterwards.
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	eng, err := engine.New(registry, extractor.NewFileLoader(), extractor.NewRecordAggregator(logger), store, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	initial := state.New(state.DocumentRef{Location: location, MediaType: mediaType}, hints)
	ws, err := eng.Run(cmd.Context(), uuid.NewString(), initial)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	out, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// detectMediaType maps a file extension to a supported media type,
// defaulting to text/plain.
func detectMediaType(location string) string {
	ext := filepath.Ext(location)
	if ext == ".md" {
		return "text/markdown"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// Drop parameters like "; charset=utf-8".
		base, _, _ := strings.Cut(t, ";")
		return strings.TrimSpace(base)
	}
	return "text/plain"
}

func parseHints(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	hints := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed hint %q, want key=value", p)
		}
		hints[k] = v
	}
	return hints, nil
}
