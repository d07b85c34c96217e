package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github/itish2003/rentalqa/models"
)

// Ingestion defaults.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// IngestionService loads, chunks, embeds and upserts a corpus directory.
type IngestionService struct {
	loader      *Loader
	chunker     *Chunker
	embedder    Embedder
	index       VectorIndex
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	strict      bool
	replace     bool
}

// IngestOption configures an IngestionService.
type IngestOption func(*IngestionService)

// WithBatchSize sets how many chunk texts go into one embedding call.
func WithBatchSize(n int) IngestOption {
	return func(s *IngestionService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of embedding calls in flight.
func WithConcurrency(n int) IngestOption {
	return func(s *IngestionService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRateLimit paces embedding calls to rps requests per second. Zero
// disables pacing.
func WithRateLimit(rps float64) IngestOption {
	return func(s *IngestionService) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithStrict makes the first unreadable document abort the run instead of
// being skipped.
func WithStrict(strict bool) IngestOption {
	return func(s *IngestionService) { s.strict = strict }
}

// WithReplace deletes a document's existing records before upserting it.
func WithReplace(replace bool) IngestOption {
	return func(s *IngestionService) { s.replace = replace }
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(loader *Loader, chunker *Chunker, embedder Embedder, index VectorIndex, opts ...IngestOption) *IngestionService {
	s := &IngestionService{
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Namespace string
	Documents int
	Chunks    int
	Failures  []*LoadError
}

var indexerLog = logrus.WithField("component", "indexer")

// RecordID derives the dedup key of a chunk from its source, ordinal and text,
// so re-ingesting identical input overwrites instead of duplicating.
func RecordID(source string, ordinal int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", source, ordinal, text)))
	return uuid.NewSHA1(uuid.NameSpaceURL, sum[:]).String()
}

// Ingest loads every supported document under dir into namespace. A failed
// embed or upsert aborts the run with an *IngestError naming the document;
// records already written are left in place. The report is returned even on
// error.
func (s *IngestionService) Ingest(ctx context.Context, dir, namespace string) (*IngestReport, error) {
	report := &IngestReport{Namespace: namespace}

	indexerLog.Infof("starting ingestion of %s into namespace %q", dir, namespace)
	docs, failures, err := s.loader.Load(ctx, dir)
	if err != nil {
		return report, &IngestError{Stage: "load", Err: err}
	}
	report.Failures = failures
	if s.strict && len(failures) > 0 {
		return report, &IngestError{Source: failures[0].Path, Stage: "load", Err: failures[0]}
	}

	for _, doc := range docs {
		n, err := s.ingestDocument(ctx, doc, namespace)
		if err != nil {
			return report, err
		}
		report.Documents++
		report.Chunks += n
	}

	indexerLog.Infof("ingestion finished: %d documents, %d chunks, %d skipped", report.Documents, report.Chunks, len(report.Failures))
	return report, nil
}

// ReindexFile replaces every record of a single file of the corpus rooted
// at root.
func (s *IngestionService) ReindexFile(ctx context.Context, root, path, namespace string) (int, error) {
	doc, err := s.loader.LoadFile(ctx, root, path)
	if err != nil {
		return 0, err
	}
	if err := s.index.DeleteBySource(ctx, namespace, doc.ID); err != nil {
		return 0, &IngestError{Source: doc.ID, Stage: "delete", Err: err}
	}
	return s.ingestDocument(ctx, doc, namespace)
}

func (s *IngestionService) ingestDocument(ctx context.Context, doc models.SourceDocument, namespace string) (int, error) {
	chunks := s.chunker.SplitDocument(doc)
	if len(chunks) == 0 {
		return 0, nil
	}
	indexerLog.Debugf("split %s into %d chunks", doc.ID, len(chunks))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.PageContent
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return 0, &IngestError{Source: doc.ID, Stage: "embed", Err: err}
	}

	records := make([]models.IndexedRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = models.IndexedRecord{
			ID:       RecordID(doc.ID, i, ch.PageContent),
			Vector:   vectors[i],
			Text:     ch.PageContent,
			Metadata: ch.Metadata,
		}
	}

	if s.replace {
		if err := s.index.DeleteBySource(ctx, namespace, doc.ID); err != nil {
			return 0, &IngestError{Source: doc.ID, Stage: "delete", Err: err}
		}
	}
	if err := s.index.Upsert(ctx, namespace, records); err != nil {
		return 0, &IngestError{Source: doc.ID, Stage: "upsert", Err: err}
	}
	indexerLog.Infof("indexed %s (%d chunks)", doc.ID, len(records))
	return len(records), nil
}

// embedAll embeds texts in batches, keeping the output aligned with the input.
func (s *IngestionService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			batch, err := s.embedder.EmbedDocuments(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

var watcherLog = logrus.WithField("component", "watcher")

// WatchDirectory re-indexes files under dir as they change until ctx is
// cancelled. Created and written files are replaced in the index; removed
// and renamed files are deleted from it.
func (s *IngestionService) WatchDirectory(ctx context.Context, dir, namespace string) error {
	return s.watch(ctx, dir, namespace, nil)
}

// watch closes ready, when non-nil, once every existing directory is watched.
func (s *IngestionService) watch(ctx context.Context, dir, namespace string, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	watcherLog.Infof("watching %s for changes", dir)
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, watcher, event, dir, namespace)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			watcherLog.Errorf("watcher error: %v", err)
		case <-ctx.Done():
			watcherLog.Info("context cancelled, shutting down watcher")
			return nil
		}
	}
}

func (s *IngestionService) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, root, namespace string) {
	if _, ok := FormatOf(event.Name); !ok {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				s.watchNewDirectory(ctx, watcher, event.Name, root, namespace)
			}
		}
		return
	}

	source := SourceID(root, event.Name)
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		s.reindex(ctx, root, event.Name, namespace)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if err := s.index.DeleteBySource(ctx, namespace, source); err != nil {
			watcherLog.Errorf("failed to delete records for %s: %v", source, err)
			return
		}
		watcherLog.Infof("removed %s from the index", source)
	}
}

// watchNewDirectory watches a directory created under root and indexes the
// files already in it, which may have been written before the watch was added.
func (s *IngestionService) watchNewDirectory(ctx context.Context, watcher *fsnotify.Watcher, dir, root, namespace string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		if _, ok := FormatOf(path); ok {
			s.reindex(ctx, root, path, namespace)
		}
		return nil
	})
	if err != nil {
		watcherLog.Warnf("could not watch new directory %s: %v", dir, err)
	}
}

func (s *IngestionService) reindex(ctx context.Context, root, path, namespace string) {
	source := SourceID(root, path)
	n, err := s.ReindexFile(ctx, root, path, namespace)
	if err != nil {
		watcherLog.Errorf("failed to re-index %s: %v", source, err)
		return
	}
	watcherLog.Infof("re-indexed %s (%d chunks)", source, n)
}
