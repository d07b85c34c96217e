package cli

import (
	"context"
	"fmt"

	"github/itish2003/rentalqa/config"
	"github/itish2003/rentalqa/llm"
	"github/itish2003/rentalqa/services"
	"github/itish2003/rentalqa/vectorstore"
)

// Provider constructors, replaced in tests.
var (
	newEmbedder  = llm.NewEmbedder
	newGenerator = llm.NewGenerator
	newIndex     = vectorstore.New
)

func retryPolicy(cfg *config.AppConfig) services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialBackoff(),
		MaxInterval:     cfg.Retry.MaxBackoff(),
		CallTimeout:     cfg.Retry.CallTimeout(),
	}
}

// openEmbedder returns the configured embedder wrapped in the retry layer.
func openEmbedder(ctx context.Context, cfg *config.AppConfig) (services.Embedder, error) {
	e, err := newEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, err
	}
	return services.RetryEmbedder(e, retryPolicy(cfg)), nil
}

// openGenerator returns the configured generator wrapped in the retry layer.
func openGenerator(ctx context.Context, cfg *config.AppConfig) (services.Generator, error) {
	g, err := newGenerator(ctx, cfg.Generator)
	if err != nil {
		return nil, err
	}
	return services.RetryGenerator(g, retryPolicy(cfg)), nil
}

// openIndex returns the configured index wrapped in the retry layer. The
// caller must Close it.
func openIndex(ctx context.Context, cfg *config.AppConfig) (services.VectorIndex, error) {
	idx, err := newIndex(ctx, cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", cfg.Index.Provider, err)
	}
	return services.RetryIndex(idx, retryPolicy(cfg)), nil
}

func newLoader(cfg *config.AppConfig) (*services.Loader, error) {
	if cfg.Ingest.PDFExtractor != config.PDFUnidoc {
		return services.NewLoader(), nil
	}
	if err := services.SetUnidocLicense(cfg.Ingest.UnidocLicense); err != nil {
		return nil, err
	}
	return services.NewLoader(services.WithPDFExtractor(services.ExtractPDFUnidoc)), nil
}

func newIngestionService(cfg *config.AppConfig, embedder services.Embedder, index services.VectorIndex, strict, replace bool) (*services.IngestionService, error) {
	loader, err := newLoader(cfg)
	if err != nil {
		return nil, err
	}
	chunker := services.NewChunker(
		services.WithChunkSize(cfg.Chunker.Size),
		services.WithChunkOverlap(cfg.Chunker.OverlapChars()),
	)
	return services.NewIngestionService(loader, chunker, embedder, index,
		services.WithBatchSize(cfg.Ingest.BatchSize),
		services.WithConcurrency(cfg.Ingest.Concurrency),
		services.WithRateLimit(cfg.Ingest.RequestsPerSecond),
		services.WithStrict(strict),
		services.WithReplace(replace),
	), nil
}
