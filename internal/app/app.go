// Package app assembles the application: configuration, database pool,
// Genkit, the knowledge store, and the RAG pipeline. Commands receive a
// fully wired *App and never construct components themselves.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragstack/ragdemo/internal/config"
	"github.com/ragstack/ragdemo/internal/knowledge"
	"github.com/ragstack/ragdemo/internal/log"
	"github.com/ragstack/ragdemo/internal/rag"
	"github.com/ragstack/ragdemo/internal/router"
)

// App is the application container. Fields are wired once in Setup and
// read-only afterwards.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge *knowledge.Store
	Router    *router.Router
	Pipeline  *rag.Pipeline
	Indexer   *rag.Indexer

	otelCleanup func()
	cancel      context.CancelFunc
}

// Close releases all resources. Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Debug("database pool closed")
		}
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
