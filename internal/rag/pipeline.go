package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ragstack/ragdemo/internal/knowledge"
	"github.com/ragstack/ragdemo/internal/rerank"
	"github.com/ragstack/ragdemo/internal/router"
)

// answerPrompt grounds the model on retrieved context only. %s placeholders:
// (1) joined chunk contents, (2) the user question.
const answerPrompt = `Answer the question using only the following context:

%s

Question: %s`

// Searcher retrieves chunks relevant to a query. *knowledge.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Generator produces an answer from a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentReranker reorders candidate documents by relevance to the query.
// *rerank.Reranker satisfies it.
type DocumentReranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) []rerank.ScoredDocument
}

// Response is the outcome of one Answer call. When the guardrail blocks the
// question, Decision.Allowed is false and the remaining fields are zero.
type Response struct {
	RequestID string
	Decision  router.Decision
	Answer    string
	Prompt    string
	Chunks    []knowledge.Result
}

// Pipeline runs the full question flow: guardrail, retrieval, optional
// reranking, prompt assembly, and generation.
type Pipeline struct {
	router    *router.Router
	searcher  Searcher
	reranker  DocumentReranker
	generator Generator

	retrievalTopK int32
	rerankTopN    int
	logger        *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRouter installs the query guardrail. A nil router allows every query.
func WithRouter(r *router.Router) PipelineOption {
	return func(p *Pipeline) {
		p.router = r
	}
}

// WithReranker enables cross-encoder reranking of retrieved chunks.
func WithReranker(r DocumentReranker) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.reranker = r
		}
	}
}

// WithRetrievalTopK sets how many chunks to fetch when a reranker is
// installed. Default is 25.
func WithRetrievalTopK(k int32) PipelineOption {
	return func(p *Pipeline) {
		if k > 0 {
			p.retrievalTopK = k
		}
	}
}

// WithRerankTopN sets how many chunks end up in the prompt. Default is 5.
func WithRerankTopN(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.rerankTopN = n
		}
	}
}

// WithLogger sets the pipeline logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a Pipeline over the given retrieval and generation
// backends.
func NewPipeline(searcher Searcher, generator Generator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		searcher:      searcher,
		generator:     generator,
		retrievalTopK: 25,
		rerankTopN:    5,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer runs the question through the pipeline. A blocked question is not an
// error: the returned Response carries the guardrail decision and the caller
// decides how to present it.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Response, error) {
	resp := &Response{
		RequestID: uuid.NewString(),
		Decision:  p.router.Inspect(question),
	}
	logger := p.logger.With("request_id", resp.RequestID)

	if !resp.Decision.Allowed {
		logger.Warn("query blocked",
			"category", resp.Decision.Category,
			"reason", resp.Decision.Reason)
		return resp, nil
	}

	// Without a reranker there is no second-stage filter, so fetch only as
	// many chunks as the prompt will hold.
	retrievalK := int32(p.rerankTopN) // #nosec G115 -- small positive config value
	if p.reranker != nil {
		retrievalK = p.retrievalTopK
	}

	results, err := p.searcher.Search(ctx, question, knowledge.WithTopK(retrievalK))
	if err != nil {
		return nil, fmt.Errorf("searching knowledge store: %w", err)
	}
	logger.Debug("retrieved chunks", "count", len(results))

	if p.reranker != nil && len(results) > 0 {
		results = p.rerankResults(ctx, question, results)
	}
	resp.Chunks = results

	resp.Prompt = buildPrompt(results, question)

	answer, err := p.generator.Generate(ctx, resp.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	resp.Answer = answer

	return resp, nil
}

// rerankResults reorders retrieved chunks by cross-encoder score and keeps
// the top N. Reranking never fails: the reranker falls back to the original
// order on API errors, so the worst case is retrieval-order truncation.
func (p *Pipeline) rerankResults(ctx context.Context, question string, results []knowledge.Result) []knowledge.Result {
	documents := make([]string, len(results))
	for i, r := range results {
		documents[i] = r.Chunk.Content
	}

	// Duplicate contents map back to distinct results in retrieval order.
	byContent := make(map[string][]int, len(results))
	for i, doc := range documents {
		byContent[doc] = append(byContent[doc], i)
	}

	ranked := p.reranker.Rerank(ctx, question, documents, p.rerankTopN)

	reordered := make([]knowledge.Result, 0, len(ranked))
	for _, scored := range ranked {
		indices := byContent[scored.Content]
		if len(indices) == 0 {
			continue
		}
		byContent[scored.Content] = indices[1:]
		reordered = append(reordered, results[indices[0]])
	}
	return reordered
}

// buildPrompt renders the answer prompt from the retrieved chunks.
func buildPrompt(results []knowledge.Result, question string) string {
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Chunk.Content
	}
	return fmt.Sprintf(answerPrompt, strings.Join(contents, "\n\n"), question)
}
