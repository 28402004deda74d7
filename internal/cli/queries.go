package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"claimsift/internal/backend"
	"claimsift/internal/model"
	"claimsift/internal/pipeline"
)

var (
	queryModel        string
	queriesOut        string
	queryChunkSize    int
	queryChunkOverlap int
	listQueries       bool
)

// queriesCmd represents the generate-queries command
var queriesCmd = &cobra.Command{
	Use:   "generate-queries <claims.jsonl>",
	Short: "Generate one validation query per extracted claim",
	Long: `Generate-queries runs the second pipeline stage:
- Window deduplicated claims into prompt-sized batches
- Ask the query model for one literature-search query per claim
- Deduplicate repeated queries across overlapping windows
- Synthesize a heuristic query for every claim the model left uncovered

With no reachable backend the stage degrades to pure heuristic synthesis,
so every claim still ends up with at least one query.

Example:
  claimsift generate-queries claims.jsonl
  claimsift generate-queries claims.jsonl --query-model qwen2.5:7b
  claimsift generate-queries claims.jsonl --output queries.jsonl --list-queries`,
	Args: cobra.ExactArgs(1),
	RunE: runQueries,
}

func init() {
	rootCmd.AddCommand(queriesCmd)

	// Backend flags
	queriesCmd.Flags().StringVar(&backendURL, "backend-url", "http://127.0.0.1:11434", "model backend base URL")
	queriesCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-request backend timeout")
	queriesCmd.Flags().StringVar(&queryModel, "query-model", "", "query model (default: first available extraction model)")
	queriesCmd.Flags().StringSliceVar(&models, "models", []string{"llama3:8b"}, "extraction models used as query-model fallbacks")
	queriesCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable backend response cache")
	queriesCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent window workers")

	// Windowing flags
	queriesCmd.Flags().IntVar(&queryChunkSize, "query-chunk-size", 25, "claims per query-generation window")
	queriesCmd.Flags().IntVar(&queryChunkOverlap, "query-chunk-overlap", 5, "claims of overlap between windows")

	// Output flags
	queriesCmd.Flags().StringVar(&queriesOut, "output", "queries.jsonl", "output JSONL path")
	queriesCmd.Flags().BoolVar(&listQueries, "list-queries", false, "print generated queries to stdout")
}

func runQueries(cmd *cobra.Command, args []string) error {
	claimsPath := args[0]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := buildConfig(cmd)

	claims, err := pipeline.LoadClaims(claimsPath)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Claims: %d from %s\n", len(claims), claimsPath)
		fmt.Fprintf(os.Stderr, "Backend: %s\n", cfg.Backend.BaseURL)
		fmt.Fprintln(os.Stderr)
	}

	r := pipeline.NewRunner(cfg, pipeline.BuildClient(cfg))

	// An unreachable backend is not fatal here; heuristics cover the rest.
	chosen := ""
	available, err := r.Preflight(ctx, nil)
	if err != nil {
		if !errors.Is(err, backend.ErrUnavailable) {
			return err
		}
		fmt.Fprintf(os.Stderr, "✗ Backend unreachable; synthesizing all queries heuristically\n")
	} else {
		chosen = pipeline.ChooseQueryModel(queryModel, models, available)
		if chosen == "" {
			fmt.Fprintf(os.Stderr, "✗ No requested model is available; synthesizing all queries heuristically\n")
		}
	}

	queries, err := pipeline.GenerateQueries(ctx, r, claims, chosen)
	if err != nil {
		return fmt.Errorf("generate queries: %w", err)
	}
	if err := pipeline.WriteQueries(queriesOut, queries); err != nil {
		return fmt.Errorf("write queries: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Generated %d queries -> %s\n", len(queries), queriesOut)
	reportDiagnostics(r)

	if listQueries {
		printQueries(queries)
	}
	return nil
}

func printQueries(queries []model.ValidationQueryRecord) {
	for _, q := range queries {
		fmt.Printf("%s [%s] %s\n", q.ClaimID, q.Origin, q.Query)
	}
}
