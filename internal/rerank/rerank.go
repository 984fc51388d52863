// Package rerank implements second-stage retrieval: reordering vector
// search candidates with a cross-encoder model served over an HTTP
// inference API.
//
// The reranker is advisory. A transport or decoding failure logs a warning
// and falls back to the candidates in their original order, so a flaky
// inference endpoint can never fail a query.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// DefaultModel is the cross-encoder used when none is configured.
const DefaultModel = "BAAI/bge-reranker-base"

// defaultBaseURL is the HuggingFace inference API root; the model name is
// appended as the path.
const defaultBaseURL = "https://api-inference.huggingface.co/models/"

// neutralScore is assigned when falling back to the original order.
const neutralScore = 0.5

// maxResponseBytes bounds the API response we are willing to decode.
const maxResponseBytes = 1 << 20

// ScoredDocument pairs a candidate text with its relevance score.
type ScoredDocument struct {
	Content string
	Score   float64
}

// Reranker scores (query, document) pairs against an inference API.
type Reranker struct {
	model  string
	apiURL string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithAPIURL overrides the full inference endpoint URL.
func WithAPIURL(url string) Option {
	return func(r *Reranker) {
		if url != "" {
			r.apiURL = url
		}
	}
}

// WithAPIKey sets the bearer token sent to the inference API.
func WithAPIKey(key string) Option {
	return func(r *Reranker) {
		r.apiKey = key
	}
}

// WithHTTPClient replaces the default client (30 second timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reranker) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Reranker for the given model. An empty model selects
// DefaultModel.
func New(model string, opts ...Option) *Reranker {
	if model == "" {
		model = DefaultModel
	}
	r := &Reranker{
		model:  model,
		apiURL: defaultBaseURL + model,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the configured model name.
func (r *Reranker) Model() string { return r.model }

// rerankRequest is the cross-encoder request body: one [query, document]
// pair per candidate.
type rerankRequest struct {
	Inputs [][2]string `json:"inputs"`
}

// Rerank scores documents against the query and returns the topN most
// relevant, highest score first. topN <= 0 returns all documents. On API
// failure the original order is returned with neutral scores.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topN int) []ScoredDocument {
	if len(documents) == 0 {
		return nil
	}

	scores, err := r.score(ctx, query, documents)
	if err != nil {
		r.logger.Warn("reranking failed, keeping original order", "model", r.model, "error", err)
		return fallback(documents, topN)
	}

	scored := make([]ScoredDocument, len(documents))
	for i, doc := range documents {
		scored[i] = ScoredDocument{Content: doc, Score: scores[i]}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topN > 0 && topN < len(scored) {
		scored = scored[:topN]
	}
	return scored
}

// score calls the inference API and returns one score per document.
func (r *Reranker) score(ctx context.Context, query string, documents []string) ([]float64, error) {
	pairs := make([][2]string, len(documents))
	for i, doc := range documents {
		pairs[i] = [2]string{query, doc}
	}

	body, err := json.Marshal(rerankRequest{Inputs: pairs})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-wait-for-model", "true")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling rerank API: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading rerank response: %w", err)
	}

	scores, err := parseScores(raw)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(documents) {
		return nil, fmt.Errorf("rerank API returned %d scores for %d documents", len(scores), len(documents))
	}
	return scores, nil
}

// parseScores accepts the response shapes cross-encoder endpoints produce:
// [0.9, 0.1], [[0.9], [0.1]], or [{"score": 0.9}, {"score": 0.1}].
func parseScores(raw []byte) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err == nil {
		scores := make([]float64, 0, len(nested))
		for _, inner := range nested {
			if len(inner) == 0 {
				return nil, fmt.Errorf("empty score array in rerank response")
			}
			scores = append(scores, inner[0])
		}
		return scores, nil
	}

	var objects []struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		scores := make([]float64, len(objects))
		for i, o := range objects {
			scores[i] = o.Score
		}
		return scores, nil
	}

	return nil, fmt.Errorf("unrecognized rerank response format")
}

// fallback returns documents in their original order with neutral scores.
func fallback(documents []string, topN int) []ScoredDocument {
	scored := make([]ScoredDocument, len(documents))
	for i, doc := range documents {
		scored[i] = ScoredDocument{Content: doc, Score: neutralScore}
	}
	if topN > 0 && topN < len(scored) {
		scored = scored[:topN]
	}
	return scored
}
