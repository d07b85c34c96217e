package services

import (
	"context"
	"sync"

	"github/itish2003/rentalqa/models"
)

type generateCall struct {
	System string
	Prompt string
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []generateCall
	respond func(call int, system, prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, generateCall{System: system, Prompt: prompt})
	n := len(g.calls)
	g.mu.Unlock()
	if g.respond == nil {
		return "", nil
	}
	return g.respond(n, system, prompt)
}

func (g *fakeGenerator) Calls() []generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generateCall(nil), g.calls...)
}

type fakeEmbedder struct {
	mu        sync.Mutex
	queries   []string
	batches   [][]string
	queryErr  error
	docErr    error
	dimension int
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	e.mu.Unlock()
	if e.docErr != nil {
		return nil, e.docErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries = append(e.queries, text)
	e.mu.Unlock()
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.vector(text), nil
}

// vector encodes the text length so tests can match records to chunks.
func (e *fakeEmbedder) vector(text string) []float32 {
	dim := e.dimension
	if dim == 0 {
		dim = 2
	}
	v := make([]float32, dim)
	v[0] = float32(len(text))
	return v
}

func (e *fakeEmbedder) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

func (e *fakeEmbedder) Batches() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.batches...)
}

// fakeIndex records every call and serves a canned result for Query.
type fakeIndex struct {
	mu        sync.Mutex
	records   map[string]map[string]models.IndexedRecord
	deleted   []string
	hits      []models.RetrievedDocument
	queryErr  error
	upsertErr error
	lastNS    string
	lastK     int
	closed    bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: map[string]map[string]models.IndexedRecord{}}
}

func (f *fakeIndex) Upsert(_ context.Context, namespace string, records []models.IndexedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	ns, ok := f.records[namespace]
	if !ok {
		ns = map[string]models.IndexedRecord{}
		f.records[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, namespace string, _ []float32, k int) ([]models.RetrievedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastNS, f.lastK = namespace, k
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.hits, nil
}

func (f *fakeIndex) DeleteBySource(_ context.Context, namespace, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, source)
	for id, r := range f.records[namespace] {
		if r.Metadata.Source() == source {
			delete(f.records[namespace], id)
		}
	}
	return nil
}

func (f *fakeIndex) Count(_ context.Context, namespace string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[namespace]), nil
}

func (f *fakeIndex) Close() error {
	f.closed = true
	return nil
}

func (f *fakeIndex) Records(namespace string) []models.IndexedRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.IndexedRecord, 0, len(f.records[namespace]))
	for _, r := range f.records[namespace] {
		out = append(out, r)
	}
	return out
}
