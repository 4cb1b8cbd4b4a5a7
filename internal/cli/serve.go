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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"vsearch/internal/adapter/httpapi"
	"vsearch/internal/adapter/watch"
)

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve search over HTTP",
	Long: `Build the index over the specified directory and serve it over HTTP.
With --watch, file changes trigger a full rebuild that replaces the served
index atomically.

Endpoints:
  GET  /health
  GET  /api/v1/search?q=...&n=...
  GET  /api/v1/stats
  POST /api/v1/reindex
  GET  /api/v1/terms?q=...
  GET  /api/v1/documents/weights?id=...
  GET  /metrics`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rebuild when files change")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, err := resolvePath(args)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	log := GetLogger()
	if serveHost != "" {
		cfg.Serve.Host = serveHost
	}
	if servePort != 0 {
		cfg.Serve.Port = servePort
	}
	if cmd.Flags().Changed("watch") {
		cfg.Serve.Watch = serveWatch
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, log)

	result, err := a.indexer.Index(ctx, path, newProgress(os.Stderr))
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	log.Info("initial index ready",
		zap.Int("documents", result.FilesIndexed),
		zap.Int("terms", result.Terms),
		zap.Int("skipped", result.FilesSkipped),
	)

	server, err := httpapi.NewServer(a.searcher, a.retriever, a.indexer, a.metrics, log, &httpapi.Config{
		Host:        cfg.Serve.Host,
		Port:        cfg.Serve.Port,
		Root:        path,
		DefaultTopN: cfg.Search.TopN,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Serve.Watch {
		w, err := watch.New(path, cfg.Serve.Debounce, a.walker.ShouldExclude, func(ctx context.Context) error {
			_, err := a.indexer.Index(ctx, path, nil)
			return err
		}, log)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		log.Info("watching for changes", zap.String("root", path), zap.Duration("debounce", cfg.Serve.Debounce))
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	return g.Wait()
}
