package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"claimsift/internal/model"
	"claimsift/internal/pipeline"
)

var (
	backendURL   string
	timeout      time.Duration
	models       []string
	claimsOut    string
	maxSegments  int
	chunkChars   int
	overlapChars int
	noCache      bool
	concurrency  int
	listClaims   bool
)

// extractCmd represents the extract-claims command
var extractCmd = &cobra.Command{
	Use:   "extract-claims <transcript.json>",
	Short: "Extract structured health claims from a transcript",
	Long: `Extract-claims runs the first pipeline stage:
- Split the transcript into overlapping chunks
- Prompt each requested model over every chunk
- Normalize malformed model output row by row
- Deduplicate identical claims across chunks and models
- Write one JSON line per claim

Example:
  claimsift extract-claims episode.json
  claimsift extract-claims episode.json --models llama3:8b,qwen2.5:7b
  claimsift extract-claims episode.json --output claims.jsonl --max-segments 200`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	// Backend flags
	extractCmd.Flags().StringVar(&backendURL, "backend-url", "http://127.0.0.1:11434", "model backend base URL")
	extractCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-request backend timeout")
	extractCmd.Flags().StringSliceVar(&models, "models", []string{"llama3:8b"}, "extraction models (comma-separated)")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable backend response cache")
	extractCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent chunk workers")

	// Chunking flags
	extractCmd.Flags().IntVar(&maxSegments, "max-segments", 0, "cap segments processed (0 = all)")
	extractCmd.Flags().IntVar(&chunkChars, "chunk-chars", 6000, "max characters per transcript chunk")
	extractCmd.Flags().IntVar(&overlapChars, "overlap-chars", 1500, "characters of overlap between chunks")

	// Output flags
	extractCmd.Flags().StringVar(&claimsOut, "output", "claims.jsonl", "output JSONL path")
	extractCmd.Flags().BoolVar(&listClaims, "list-claims", false, "print extracted claims to stdout")
}

// buildConfig assembles a run config honoring the documented hierarchy:
// defaults, then config file / CLAIMSIFT_* env via viper, then any flag
// the user actually set on this command.
func buildConfig(cmd *cobra.Command) model.Config {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring malformed config values: %v\n", err)
		cfg = model.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("backend-url") {
		cfg.Backend.BaseURL = backendURL
	}
	if flags.Changed("timeout") {
		cfg.Backend.Timeout = timeout
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}
	if flags.Changed("max-segments") {
		cfg.Chunking.MaxSegments = maxSegments
	}
	if flags.Changed("chunk-chars") {
		cfg.Chunking.MaxChars = chunkChars
	}
	if flags.Changed("overlap-chars") {
		cfg.Chunking.OverlapChars = overlapChars
	}
	if flags.Changed("query-chunk-size") {
		cfg.Chunking.QueryChunkSize = queryChunkSize
	}
	if flags.Changed("query-chunk-overlap") {
		cfg.Chunking.QueryChunkOverlap = queryChunkOverlap
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return cfg
}

func runExtract(cmd *cobra.Command, args []string) error {
	transcriptPath := args[0]
	ctx, cancel := context.WithCancel(context.Background())
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
	available, err := r.Preflight(ctx, models)
	if err != nil {
		return err
	}
	kept, _ := pipeline.FilterModels(models, available)
	if len(kept) == 0 {
		return fmt.Errorf("backend serves none of the requested models %v", models)
	}

	claims, err := pipeline.ExtractClaims(ctx, r, transcript, kept)
	if err != nil {
		return fmt.Errorf("extract claims: %w", err)
	}
	if err := pipeline.WriteClaims(claimsOut, claims); err != nil {
		return fmt.Errorf("write claims: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Extracted %d claims -> %s\n", len(claims), claimsOut)
	reportDiagnostics(r)

	if listClaims {
		printClaims(claims)
	}
	return nil
}

func reportDiagnostics(r *pipeline.Runner) {
	diags := r.Diagnostics()
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "✗ %d rows or chunks were dropped:\n", len(diags))
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "  - %s\n", d)
	}
}

func printClaims(claims []model.ClaimRecord) {
	for _, c := range claims {
		fmt.Printf("%s [%s] (%.0fs-%.0fs) %s: %s\n",
			c.ClaimID, c.ClaimType, c.TimeRange.Start, c.TimeRange.End, c.Speaker, c.ClaimText)
	}
}
