package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragstack/ragdemo/internal/app"
	"github.com/ragstack/ragdemo/internal/config"
	"github.com/ragstack/ragdemo/internal/rag"
)

// Retrieval and chunking flags. Flags override the config file; config
// overrides defaults. Only flags the user actually set are applied.
var (
	flagSkipEmbedding      bool
	flagChunkingStrategy   string
	flagChunkSize          int
	flagChunkOverlap       int
	flagUseReranker        bool
	flagRetrievalTopK      int
	flagRerankTopN         int
	flagRerankerModel      string
	flagDisableQueryRouter bool
)

var rootCmd = &cobra.Command{
	Use:   "ragdemo",
	Short: "A small end-to-end RAG demo",
	Long: `ragdemo indexes the documents under the data directory into a pgvector
knowledge base, then answers questions grounded on the retrieved chunks.

Running ragdemo with no subcommand performs the full demo: index (unless
--skip-embedding-step is set), then an interactive question loop. A query
guardrail screens every question before retrieval.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.RunE = runRoot

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagChunkingStrategy, "chunking-strategy", "", "chunking strategy: recursive_character, sentence_transformer, or naive")
	pf.IntVar(&flagChunkSize, "chunk-size", 0, "target chunk size")
	pf.IntVar(&flagChunkOverlap, "chunk-overlap", 0, "overlap between adjacent chunks")
	pf.BoolVar(&flagUseReranker, "use-reranker", false, "rerank retrieved chunks with a cross-encoder")
	pf.IntVar(&flagRetrievalTopK, "retrieval-top-k", 0, "chunks to retrieve before reranking")
	pf.IntVar(&flagRerankTopN, "rerank-top-n", 0, "chunks to keep after reranking")
	pf.StringVar(&flagRerankerModel, "reranker-model", "", "cross-encoder model for reranking")
	pf.BoolVar(&flagDisableQueryRouter, "disable-query-router", false, "skip the query guardrail")

	rootCmd.Flags().BoolVar(&flagSkipEmbedding, "skip-embedding-step", false, "reuse the existing index instead of re-embedding")
}

// applyFlagOverrides copies explicitly set flags into the configuration.
func applyFlagOverrides(cfg *config.Config) {
	pf := rootCmd.PersistentFlags()
	if pf.Changed("chunking-strategy") {
		cfg.ChunkingStrategy = flagChunkingStrategy
	}
	if pf.Changed("chunk-size") {
		cfg.ChunkSize = flagChunkSize
	}
	if pf.Changed("chunk-overlap") {
		cfg.ChunkOverlap = flagChunkOverlap
	}
	if pf.Changed("use-reranker") {
		cfg.UseReranker = flagUseReranker
	}
	if pf.Changed("retrieval-top-k") {
		cfg.RetrievalTopK = flagRetrievalTopK
	}
	if pf.Changed("rerank-top-n") {
		cfg.RerankTopN = flagRerankTopN
	}
	if pf.Changed("reranker-model") {
		cfg.RerankerModel = flagRerankerModel
	}
	if flagDisableQueryRouter {
		cfg.RouterEnabled = false
	}
}

// runRoot performs the full demo: index the data directory, then answer
// questions interactively until EOF.
func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Setup(ctx, cfg, initLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	if flagSkipEmbedding {
		count, err := a.Knowledge.Count(ctx)
		if err != nil {
			return fmt.Errorf("checking index: %w", err)
		}
		fmt.Printf("Reusing existing index (%d chunks).\n", count)
	} else {
		result, err := a.Indexer.IndexDirectory(ctx, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", cfg.DataDir, err)
		}
		fmt.Printf("Indexed %d files (%d chunks) in %s.\n",
			result.FilesAdded, result.ChunksAdded, result.Duration.Round(time.Millisecond))
		if result.FilesFailed > 0 {
			fmt.Printf("Warning: %d files failed to index.\n", result.FilesFailed)
		}
	}

	return questionLoop(ctx, a)
}

// questionLoop reads questions from stdin until EOF or an empty exit word.
// After each answer the user may inspect the raw prompt that was sent to
// the model.
func questionLoop(ctx context.Context, a *app.App) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(`Ask a question (or "exit" to quit):`)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "exit" || question == "quit" {
			break
		}

		resp, err := answerOne(ctx, a, question)
		if err != nil {
			return err
		}
		if resp == nil || !resp.Decision.Allowed {
			continue
		}

		fmt.Print("Would you like to see the raw prompt? [Y/N] ")
		if !scanner.Scan() {
			break
		}
		if isYes(scanner.Text()) {
			fmt.Println(resp.Prompt)
		}
	}
	return scanner.Err()
}

// isYes interprets a Y/N reply; anything but an explicit yes is no.
func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

// answerOne runs one question through the pipeline and prints the outcome.
// Guardrail rejections are printed, not returned as errors, so the loop
// continues. The response is returned so callers can show the raw prompt.
func answerOne(ctx context.Context, a *app.App, question string) (*rag.Response, error) {
	resp, err := a.Pipeline.Answer(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}

	if !resp.Decision.Allowed {
		fmt.Printf("Rejected [%s]: %s\n", resp.Decision.Category, resp.Decision.Reason)
		return resp, nil
	}

	fmt.Println(resp.Answer)
	return resp, nil
}
