package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"claimsift/internal/pipeline"
)

var pipelineTimeout time.Duration

// runCmd represents the run-pipeline command
var runCmd = &cobra.Command{
	Use:   "run-pipeline <transcript.json>",
	Short: "Run extraction and query generation end to end",
	Long: `Run-pipeline chains both stages over one transcript:
- Extract, normalize and deduplicate claims
- Write claims.jsonl atomically
- Generate and deduplicate validation queries, heuristically covering
  any claim the model missed
- Write queries.jsonl atomically

Example:
  claimsift run-pipeline episode.json
  claimsift run-pipeline episode.json --models llama3:8b,qwen2.5:7b --query-model qwen2.5:7b
  claimsift run-pipeline episode.json --output claims.jsonl --queries-output queries.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Backend flags
	runCmd.Flags().StringVar(&backendURL, "backend-url", "http://127.0.0.1:11434", "model backend base URL")
	runCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-request backend timeout")
	runCmd.Flags().DurationVar(&pipelineTimeout, "pipeline-timeout", 0, "total pipeline timeout (0 = none)")
	runCmd.Flags().StringSliceVar(&models, "models", []string{"llama3:8b"}, "extraction models (comma-separated)")
	runCmd.Flags().StringVar(&queryModel, "query-model", "", "query model (default: first available extraction model)")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable backend response cache")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent workers")

	// Chunking flags
	runCmd.Flags().IntVar(&maxSegments, "max-segments", 0, "cap segments processed (0 = all)")
	runCmd.Flags().IntVar(&chunkChars, "chunk-chars", 6000, "max characters per transcript chunk")
	runCmd.Flags().IntVar(&overlapChars, "overlap-chars", 1500, "characters of overlap between chunks")
	runCmd.Flags().IntVar(&queryChunkSize, "query-chunk-size", 25, "claims per query-generation window")
	runCmd.Flags().IntVar(&queryChunkOverlap, "query-chunk-overlap", 5, "claims of overlap between windows")

	// Output flags
	runCmd.Flags().StringVar(&claimsOut, "output", "claims.jsonl", "claims output JSONL path")
	runCmd.Flags().StringVar(&queriesOut, "queries-output", "queries.jsonl", "queries output JSONL path")
	runCmd.Flags().BoolVar(&listClaims, "list-claims", false, "print extracted claims to stdout")
	runCmd.Flags().BoolVar(&listQueries, "list-queries", false, "print generated queries to stdout")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	transcriptPath := args[0]

	ctx := context.Background()
	var cancel context.CancelFunc
	if pipelineTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, pipelineTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cfg := buildConfig(cmd)

	transcript, err := pipeline.LoadTranscript(transcriptPath)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Transcript: %s (%d segments)\n", transcript.DocID, len(transcript.Segments))
		fmt.Fprintf(os.Stderr, "Models: %s\n", strings.Join(models, ", "))
		fmt.Fprintf(os.Stderr, "Backend: %s\n", cfg.Backend.BaseURL)
		fmt.Fprintln(os.Stderr)
	}

	r := pipeline.NewRunner(cfg, pipeline.BuildClient(cfg))
	if err := pipeline.RunPipeline(ctx, r, transcript, models, queryModel, claimsOut, queriesOut); err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Claims:  %s\n", claimsOut)
	fmt.Fprintf(os.Stderr, "✓ Queries: %s\n", queriesOut)
	reportDiagnostics(r)

	if listClaims {
		if claims, err := pipeline.LoadClaims(claimsOut); err == nil {
			printClaims(claims)
		}
	}
	if listQueries {
		if queries, err := pipeline.LoadQueries(queriesOut); err == nil {
			printQueries(queries)
		}
	}
	return nil
}
