package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/rentalqa/config"
	"github/itish2003/rentalqa/services"
	"github/itish2003/rentalqa/vectorstore"
)

type lengthEmbedder struct{}

func (lengthEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (lengthEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func setupCLITest(t *testing.T) (cfgPath, docsDir, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	docsDir = filepath.Join(dir, "docs")
	dbPath = filepath.Join(dir, "index.db")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))

	cfg := config.Default()
	cfg.Index.Provider = config.IndexSQLite
	cfg.Index.SQLitePath = dbPath
	cfg.Ingest.Dir = docsDir
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	oldEmbedder := newEmbedder
	newEmbedder = func(context.Context, config.ModelConfig) (services.Embedder, error) {
		return lengthEmbedder{}, nil
	}
	t.Cleanup(func() {
		newEmbedder = oldEmbedder
		ingestDir, ingestNamespace = "", ""
		ingestStrict, ingestReplace, ingestWatch = false, false, false
		rootCmd.SetArgs(nil)
	})
	return cfgPath, docsDir, dbPath
}

func countRecords(t *testing.T, dbPath, namespace string) int {
	t.Helper()
	s, err := vectorstore.NewSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(context.Background(), namespace)
	require.NoError(t, err)
	return n
}

func TestIngestCmd_IndexesCorpus(t *testing.T) {
	cfgPath, docsDir, dbPath := setupCLITest(t)
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "lease.txt"), []byte("Rent is paid fortnightly in advance."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "bond.md"), []byte("# Bond\n\nThe bond is four weeks rent."), 0o644))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--config", cfgPath, "ingest", "--namespace", "nsw"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), `Indexed 2 documents (2 chunks) into namespace "nsw"`)
	assert.Equal(t, 2, countRecords(t, dbPath, "nsw"))

	// A second run overwrites instead of duplicating.
	rootCmd.SetArgs([]string{"--config", cfgPath, "ingest", "--namespace", "nsw"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, 2, countRecords(t, dbPath, "nsw"))
}

func TestIngestCmd_StrictFailsOnUnreadableDocument(t *testing.T) {
	cfgPath, docsDir, _ := setupCLITest(t)
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "blank.txt"), []byte("   "), 0o644))

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"--config", cfgPath, "ingest", "--strict"})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, services.ErrIngestionAborted)
}

func TestIngestCmd_Flags(t *testing.T) {
	for _, name := range []string{"dir", "namespace", "strict", "replace", "watch"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
}

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Retry.MaxAttempts = 5
	p := retryPolicy(cfg)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, cfg.Retry.CallTimeout(), p.CallTimeout)
}

// slowWatcher keeps working for a moment after its context is cancelled,
// like a watcher finishing an in-flight re-index.
type slowWatcher struct {
	started  chan struct{}
	finished atomic.Bool
}

func (w *slowWatcher) WatchDirectory(ctx context.Context, _, _ string) error {
	close(w.started)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	w.finished.Store(true)
	return nil
}

func TestStartWatcher_StopWaitsForWatcher(t *testing.T) {
	w := &slowWatcher{started: make(chan struct{})}
	stop := startWatcher(context.Background(), w, "docs", "default")

	select {
	case <-w.started:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}
	assert.False(t, w.finished.Load())

	stop()
	assert.True(t, w.finished.Load())
}
