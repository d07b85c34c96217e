// Package vectorstore implements the vector index behind the retrieval
// chain: an in-process map, a local SQLite file or a ChromaDB server.
package vectorstore

import (
	"context"
	"fmt"

	"github/itish2003/rentalqa/config"
	"github/itish2003/rentalqa/services"
)

var (
	_ services.VectorIndex = (*Memory)(nil)
	_ services.VectorIndex = (*SQLite)(nil)
	_ services.VectorIndex = (*Chroma)(nil)
)

// New opens the index selected by cfg.Provider.
func New(ctx context.Context, cfg config.IndexConfig) (services.VectorIndex, error) {
	switch cfg.Provider {
	case config.IndexMemory:
		return NewMemory(), nil
	case config.IndexSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)
	case config.IndexChroma:
		return NewChroma(cfg.ChromaURL, cfg.Name)
	default:
		return nil, fmt.Errorf("unknown index provider %q", cfg.Provider)
	}
}
