package vectorstore

import (
	"context"
	"sync"

	"github/itish2003/rentalqa/models"
)

// Memory is an in-process index. Contents are lost when the process exits.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]models.IndexedRecord
}

// NewMemory creates a new in-memory index.
func NewMemory() *Memory {
	return &Memory{
		namespaces: make(map[string]map[string]models.IndexedRecord),
	}
}

// Upsert stores records, replacing any with the same ID.
func (m *Memory) Upsert(_ context.Context, namespace string, records []models.IndexedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]models.IndexedRecord)
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		r.Metadata = r.Metadata.Clone()
		ns[r.ID] = r
	}
	return nil
}

// Query returns the k records nearest to vector by cosine similarity.
func (m *Memory) Query(_ context.Context, namespace string, vector []float32, k int) ([]models.RetrievedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns := m.namespaces[namespace]
	hits := make([]scored, 0, len(ns))
	for id, r := range ns {
		hits = append(hits, scored{
			id: id,
			doc: models.RetrievedDocument{
				PageContent: r.Text,
				Metadata:    r.Metadata.Clone(),
				Score:       cosineSimilarity(vector, r.Vector),
			},
		})
	}
	return topK(hits, k), nil
}

// DeleteBySource removes every record whose metadata source matches.
func (m *Memory) DeleteBySource(_ context.Context, namespace, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.namespaces[namespace] {
		if r.Metadata.Source() == source {
			delete(m.namespaces[namespace], id)
		}
	}
	return nil
}

// Count returns the number of records in namespace.
func (m *Memory) Count(_ context.Context, namespace string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace]), nil
}

// Close is a no-op for the memory index.
func (m *Memory) Close() error {
	return nil
}
