package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	ingestDir       string
	ingestNamespace string
	ingestStrict    bool
	ingestReplace   bool
	ingestWatch     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the corpus directory",
	Long: `Loads every PDF, text, markdown and HTML file under the corpus
directory, splits it into chunks, embeds them and writes them to the
configured index namespace. Re-running over the same files does not create
duplicates.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDir, "dir", "d", "", "corpus directory (overrides config)")
	ingestCmd.Flags().StringVarP(&ingestNamespace, "namespace", "n", "", "index namespace (overrides config)")
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "abort on the first unreadable document")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "delete each document's old chunks before writing")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep running and re-index files as they change")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	log := logrus.WithField("component", "ingest")
	cfg := appConfig
	dir := cfg.Ingest.Dir
	if ingestDir != "" {
		dir = ingestDir
	}
	namespace := cfg.Index.Namespace
	if ingestNamespace != "" {
		namespace = ingestNamespace
	}
	strict := cfg.Ingest.Strict || ingestStrict

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := openEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	index, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := index.Close(); err != nil {
			log.Warnf("failed to close index: %v", err)
		}
	}()

	ingestion, err := newIngestionService(cfg, embedder, index, strict, ingestReplace)
	if err != nil {
		return err
	}

	report, err := ingestion.Ingest(ctx, dir, namespace)
	if report != nil {
		for _, f := range report.Failures {
			log.Warnf("skipped %s: %v", f.Path, f.Err)
		}
		cmd.Printf("Indexed %d documents (%d chunks) into namespace %q, %d skipped.\n",
			report.Documents, report.Chunks, report.Namespace, len(report.Failures))
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestWatch {
		cmd.Printf("Watching %s for changes. Press Ctrl+C to stop.\n", dir)
		return ingestion.WatchDirectory(ctx, dir, namespace)
	}
	return nil
}
