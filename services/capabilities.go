package services

import (
	"context"

	"github/itish2003/rentalqa/models"
)

// Embedder turns text into fixed-dimension vectors. The method set matches
// langchaingo's embeddings.Embedder so its implementations plug in directly.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text from a system instruction and a user prompt.
// An empty system string means no system instruction.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// VectorIndex stores records in namespaces and answers nearest-neighbour
// queries. Upsert is keyed by IndexedRecord.ID.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []models.IndexedRecord) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.RetrievedDocument, error)
	DeleteBySource(ctx context.Context, namespace, source string) error
	Count(ctx context.Context, namespace string) (int, error)
	Close() error
}
