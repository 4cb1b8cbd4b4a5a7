package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"vsearch/config"
	"vsearch/internal/adapter/analyzer"
	"vsearch/internal/adapter/cache"
	"vsearch/internal/adapter/fs"
	"vsearch/internal/adapter/metrics"
	"vsearch/internal/adapter/retriever"
	"vsearch/internal/port"
	"vsearch/internal/usecase"
)

// app wires the components every command shares.
type app struct {
	walker    *fs.Walker
	retriever *retriever.TFIDFRetriever
	indexer   *usecase.IndexUseCase
	searcher  *usecase.RetrieveUseCase
	metrics   *metrics.Metrics
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	tokenizer := analyzer.NewTokenizer(cfg.Index.Stemming,
		analyzer.WithStopwords(cfg.Index.Stopwords),
		analyzer.WithMinTokenLen(cfg.Index.MinTokenLen),
	)
	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	tfidf := retriever.NewTFIDFRetriever(tokenizer)
	m := metrics.New(prometheus.NewRegistry())

	opts := []usecase.IndexOption{
		usecase.WithWorkers(cfg.Index.Workers),
		usecase.WithMetrics(m),
		usecase.WithLogger(logger),
	}

	var search port.Retriever = tfidf
	if cfg.Cache.Enabled {
		cached := cache.NewCachedRetriever(tfidf, cache.NewQueryCache(cfg.Cache.Size, cfg.Cache.TTL), m)
		opts = append(opts, usecase.WithInvalidation(cached))
		search = cached
	}

	return &app{
		walker:    walker,
		retriever: tfidf,
		indexer:   usecase.NewIndexUseCase(walker, tokenizer, tfidf, opts...),
		searcher:  usecase.NewRetrieveUseCase(search, cfg.Search.MinScore, m),
		metrics:   m,
	}
}

// resolvePath returns the directory a command operates on: the first
// argument if given, else the --dir root.
func resolvePath(args []string) (string, error) {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}
	return path, nil
}
