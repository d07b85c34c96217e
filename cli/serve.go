package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github/itish2003/rentalqa/controller"
	"github/itish2003/rentalqa/services"
)

var (
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the chat API on the configured port. With --watch the corpus
directory is re-indexed as files change while the server runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-index the corpus directory on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logrus.WithField("component", "server")
	cfg := appConfig
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := openEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	generator, err := openGenerator(ctx, cfg)
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

	ragService := services.NewRAGService(embedder, index, generator,
		services.WithNamespace(cfg.Index.Namespace),
		services.WithTopK(cfg.Chain.TopK),
	)

	if serveWatch {
		ingestion, err := newIngestionService(cfg, embedder, index, false, true)
		if err != nil {
			return err
		}
		// Registered after the index Close, so it runs first.
		defer startWatcher(ctx, ingestion, cfg.Ingest.Dir, cfg.Index.Namespace)()
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := controller.NewRouter(controller.NewRAGController(ragService))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Rental Copilot API listening on http://localhost:%d", cfg.Server.Port)
		log.Infof("  POST http://localhost:%d/api/chat", cfg.Server.Port)
		log.Infof("  GET  http://localhost:%d/api/v1/stats", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

type directoryWatcher interface {
	WatchDirectory(ctx context.Context, dir, namespace string) error
}

// startWatcher runs w in the background. The returned func stops it and
// waits for the in-flight event to finish.
func startWatcher(ctx context.Context, w directoryWatcher, dir, namespace string) func() {
	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		if err := w.WatchDirectory(ctx, dir, namespace); err != nil {
			logrus.WithField("component", "server").Errorf("watcher stopped: %v", err)
			return err
		}
		return nil
	})
	return func() {
		cancel()
		_ = g.Wait()
	}
}
