package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github/itish2003/rentalqa/models"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

// RAGService answers questions about the indexed corpus.
type RAGService interface {
	// Answer runs condense → retrieve → generate for one question. It holds
	// no session state; the caller supplies the history on every call.
	Answer(ctx context.Context, question string, history models.History) (*models.AnswerResult, error)

	// Stats reports the number of chunks in the configured namespace.
	Stats(ctx context.Context) (*models.StatsResponse, error)
}

// ragServiceImpl holds the capability handles it was constructed with.
type ragServiceImpl struct {
	embedder  Embedder
	index     VectorIndex
	generator Generator
	namespace string
	topK      int
}

// RAGOption configures the RAG service.
type RAGOption func(*ragServiceImpl)

// WithNamespace selects the index namespace queried by the service.
func WithNamespace(ns string) RAGOption {
	return func(r *ragServiceImpl) { r.namespace = ns }
}

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) RAGOption {
	return func(r *ragServiceImpl) {
		if k > 0 {
			r.topK = k
		}
	}
}

// NewRAGService creates a new RAG service instance.
func NewRAGService(embedder Embedder, index VectorIndex, generator Generator, opts ...RAGOption) RAGService {
	r := &ragServiceImpl{
		embedder:  embedder,
		index:     index,
		generator: generator,
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var chainLog = logrus.WithField("component", "chain")

// NormalizeQuestion trims the question and replaces line breaks with spaces.
func NormalizeQuestion(q string) string {
	q = strings.ReplaceAll(q, "\r\n", " ")
	q = strings.NewReplacer("\n", " ", "\r", " ").Replace(q)
	return strings.TrimSpace(q)
}

// Answer implements RAGService.
func (r *ragServiceImpl) Answer(ctx context.Context, question string, history models.History) (result *models.AnswerResult, err error) {
	q := NormalizeQuestion(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}

	defer func() {
		if p := recover(); p != nil {
			chainLog.Errorf("recovered from panic: %v", p)
			result, err = nil, &StageError{Stage: "answer", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	standalone, err := r.condense(ctx, q, history)
	if err != nil {
		return nil, err
	}
	docs, err := r.retrieve(ctx, standalone)
	if err != nil {
		return nil, err
	}
	text, err := r.generate(ctx, standalone, docs)
	if err != nil {
		return nil, err
	}

	if IsFallbackAnswer(text) {
		chainLog.Debugf("fallback answer, dropping %d sources", len(docs))
		return &models.AnswerResult{Text: text, SourceDocuments: []models.RetrievedDocument{}}, nil
	}
	if docs == nil {
		docs = []models.RetrievedDocument{}
	}
	return &models.AnswerResult{Text: text, SourceDocuments: docs}, nil
}

// condense rewrites q as a standalone question. The first turn of a
// conversation is passed through without calling the model.
func (r *ragServiceImpl) condense(ctx context.Context, q string, history models.History) (string, error) {
	if history.IsEmpty() {
		return q, nil
	}
	prompt, err := CondensePrompt(history, q)
	if err != nil {
		return "", &StageError{Stage: "condense", Err: err}
	}
	out, err := r.generator.Generate(ctx, "", prompt)
	if err != nil {
		return "", &StageError{Stage: "condense", Err: err}
	}
	standalone := NormalizeQuestion(out)
	if standalone == "" {
		return q, nil
	}
	chainLog.Debugf("condensed %q to %q", q, standalone)
	return standalone, nil
}

func (r *ragServiceImpl) retrieve(ctx context.Context, question string) ([]models.RetrievedDocument, error) {
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, &StageError{Stage: "retrieve", Err: fmt.Errorf("embed question: %w", err)}
	}
	docs, err := r.index.Query(ctx, r.namespace, vec, r.topK)
	if err != nil {
		return nil, &StageError{Stage: "retrieve", Err: fmt.Errorf("query index: %w", err)}
	}
	chainLog.Debugf("retrieved %d chunks from namespace %q", len(docs), r.namespace)
	return docs, nil
}

func (r *ragServiceImpl) generate(ctx context.Context, question string, docs []models.RetrievedDocument) (string, error) {
	prompt, err := QAPrompt(docs, question)
	if err != nil {
		return "", &StageError{Stage: "generate", Err: err}
	}
	out, err := r.generator.Generate(ctx, SystemPrompt(), prompt)
	if err != nil {
		return "", &StageError{Stage: "generate", Err: err}
	}
	return strings.TrimSpace(out), nil
}

// Stats counts the chunks in the configured namespace.
func (r *ragServiceImpl) Stats(ctx context.Context) (*models.StatsResponse, error) {
	count, err := r.index.Count(ctx, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to count items in namespace %q: %w", r.namespace, err)
	}
	return &models.StatsResponse{Namespace: r.namespace, Chunks: count}, nil
}
