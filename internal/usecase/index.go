package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"vsearch/internal/adapter/fs"
	"vsearch/internal/adapter/metrics"
	"vsearch/internal/engine"
	"vsearch/internal/port"
)

// Publisher makes a freshly built corpus visible to queries.
type Publisher interface {
	Publish(corpus *engine.Corpus) uint64
}

// Invalidator drops state derived from the previous corpus.
type Invalidator interface {
	Invalidate()
}

// IndexUseCase handles full rebuilds of the corpus from a directory tree.
// Concurrent calls to Index run one at a time.
type IndexUseCase struct {
	mu sync.Mutex

	walker    port.FileWalker
	tokenizer port.Tokenizer
	publisher Publisher
	caches    []Invalidator
	workers   int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// IndexOption configures an IndexUseCase.
type IndexOption func(*IndexUseCase)

func WithWorkers(n int) IndexOption {
	return func(u *IndexUseCase) { u.workers = n }
}

func WithMetrics(m *metrics.Metrics) IndexOption {
	return func(u *IndexUseCase) { u.metrics = m }
}

func WithLogger(logger *zap.Logger) IndexOption {
	return func(u *IndexUseCase) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithInvalidation registers caches to clear after every publish.
func WithInvalidation(caches ...Invalidator) IndexOption {
	return func(u *IndexUseCase) { u.caches = append(u.caches, caches...) }
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	walker port.FileWalker,
	tokenizer port.Tokenizer,
	publisher Publisher,
	opts ...IndexOption,
) *IndexUseCase {
	u := &IndexUseCase{
		walker:    walker,
		tokenizer: tokenizer,
		publisher: publisher,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	FilesFound   int           `json:"files_found"`
	FilesIndexed int           `json:"files_indexed"`
	FilesSkipped int           `json:"files_skipped"`
	Terms        int           `json:"terms"`
	Generation   uint64        `json:"generation"`
	Workers      int           `json:"workers"`
	Duration     time.Duration `json:"duration_ns"`
	Errors       []string      `json:"errors,omitempty"`
}

// Index rebuilds the corpus from every file under root and publishes it.
// Files that cannot be read or contain no terms are listed in Errors; the
// rest of the corpus is still published. The previous corpus stays in
// service if the build fails.
func (u *IndexUseCase) Index(ctx context.Context, root string, progress engine.ProgressFunc) (*IndexResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	start := time.Now()

	files, err := u.walker.Walk(root)
	if err != nil {
		u.metrics.ObserveBuild(time.Since(start), 0, 0, 0, err)
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	builder := engine.NewBuilder(
		engine.WithWorkers(u.workers),
		engine.WithLogger(u.logger),
		engine.WithProgress(progress),
	)

	corpus, report, err := builder.Build(ctx, fs.Documents(files, u.tokenizer))
	if err != nil {
		u.metrics.ObserveBuild(time.Since(start), 0, 0, 0, err)
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	gen := u.publisher.Publish(corpus)
	for _, c := range u.caches {
		c.Invalidate()
	}

	result := &IndexResult{
		FilesFound:   len(files),
		FilesIndexed: report.Documents,
		FilesSkipped: len(report.Skipped),
		Terms:        report.Terms,
		Generation:   gen,
		Workers:      report.Workers,
		Duration:     time.Since(start),
	}
	for _, s := range report.Skipped {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", s.DocID, s.Reason))
	}

	u.metrics.ObserveBuild(result.Duration, result.FilesIndexed, result.Terms, result.FilesSkipped, nil)
	u.logger.Info("index published",
		zap.String("root", root),
		zap.Int("files", result.FilesFound),
		zap.Int("documents", result.FilesIndexed),
		zap.Uint64("generation", gen),
	)

	return result, nil
}
