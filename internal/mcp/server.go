package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragstack/ragdemo/internal/knowledge"
	"github.com/ragstack/ragdemo/internal/rag"
)

// Answerer runs a question through the full RAG pipeline. *rag.Pipeline
// satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*rag.Response, error)
}

// KnowledgeBase is the subset of the store the MCP tools need.
// *knowledge.Store satisfies it.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	Count(ctx context.Context) (int, error)
}

// Server exposes the knowledge base over MCP so IDE clients can search
// chunks and ask grounded questions.
type Server struct {
	mcpServer *mcp.Server
	store     KnowledgeBase
	pipeline  Answerer
	logger    *slog.Logger
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// NewServer creates an MCP server and registers the knowledge tools.
func NewServer(store KnowledgeBase, pipeline Answerer, opts ServerOptions) (*Server, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if opts.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		store:    store,
		pipeline: pipeline,
		logger:   opts.Logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves MCP requests on the transport until ctx is cancelled. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerSearchChunks(); err != nil {
		return fmt.Errorf("search_chunks: %w", err)
	}
	if err := s.registerAsk(); err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if err := s.registerIndexStatus(); err != nil {
		return fmt.Errorf("index_status: %w", err)
	}
	return nil
}

// SearchChunksInput is the input schema for the search_chunks tool.
type SearchChunksInput struct {
	Query string `json:"query" jsonschema:"The text to search for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Maximum number of chunks to return (default 5)"`
}

// searchChunkResult is one hit in the search_chunks response.
type searchChunkResult struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (s *Server) registerSearchChunks() error {
	inputSchema, err := jsonschema.For[SearchChunksInput](nil)
	if err != nil {
		return fmt.Errorf("building input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "search_chunks",
		Description: "Search the indexed knowledge base by semantic similarity. Returns the most relevant chunks with their similarity scores and source metadata.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in SearchChunksInput) (*mcp.CallToolResult, any, error) {
		var opts []knowledge.SearchOption
		if in.TopK > 0 {
			opts = append(opts, knowledge.WithTopK(int32(in.TopK))) // #nosec G115 -- WithTopK ignores non-positive values
		}

		results, err := s.store.Search(ctx, in.Query, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("searching chunks: %w", err)
		}

		hits := make([]searchChunkResult, len(results))
		for i, r := range results {
			hits[i] = searchChunkResult{
				ID:         r.Chunk.ID,
				Content:    r.Chunk.Content,
				Similarity: r.Similarity,
				Metadata:   r.Chunk.Metadata,
			}
		}

		payload, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encoding results: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil, nil
	})

	return nil
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"The question to answer using the indexed knowledge base"`
}

func (s *Server) registerAsk() error {
	inputSchema, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("building input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question grounded on the indexed knowledge base. Runs the full pipeline: guardrail, retrieval, optional reranking, and generation.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
		resp, err := s.pipeline.Answer(ctx, in.Question)
		if err != nil {
			return nil, nil, fmt.Errorf("answering question: %w", err)
		}

		// A guardrail rejection is a tool-level error, not a protocol error.
		if !resp.Decision.Allowed {
			s.logger.Warn("MCP ask blocked",
				"request_id", resp.RequestID,
				"category", resp.Decision.Category)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{
					Text: fmt.Sprintf("Question rejected [%s]: %s", resp.Decision.Category, resp.Decision.Reason),
				}},
				IsError: true,
			}, nil, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resp.Answer}},
		}, nil, nil
	})

	return nil
}

// IndexStatusInput is the (empty) input schema for the index_status tool.
type IndexStatusInput struct{}

func (s *Server) registerIndexStatus() error {
	inputSchema, err := jsonschema.For[IndexStatusInput](nil)
	if err != nil {
		return fmt.Errorf("building input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "index_status",
		Description: "Report how many chunks are currently indexed in the knowledge base.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in IndexStatusInput) (*mcp.CallToolResult, any, error) {
		count, err := s.store.Count(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("counting chunks: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: strconv.Itoa(count) + " chunks indexed"}},
		}, nil, nil
	})

	return nil
}
