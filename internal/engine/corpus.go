// Package engine builds a TF-IDF vector-space index over a document corpus
// and answers ranked queries against it.
//
// Building runs as a two-phase parallel pipeline. Phase 1 splits the documents
// into contiguous partitions, one per worker, and each worker builds a private
// inverted index; the partials are merged on one goroutine after all workers
// join. Phase 2 splits the merged term list the same way to compute idf and
// per-document weights into private maps, again merged after a join.
//
// A built Corpus is never mutated. Queries may run concurrently against it,
// and a rebuild produces a new Corpus that callers publish by swapping the
// pointer.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"vsearch/internal/domain"
	"vsearch/internal/port"
)

// Corpus is an immutable snapshot of one indexing pass.
type Corpus struct {
	index   InvertedIndex
	idf     map[string]float64
	vectors map[string]DocumentVector
	norms   map[string]float64
	docs    int
}

// EmptyCorpus returns a corpus with no documents. Every search against it
// returns no results.
func EmptyCorpus() *Corpus {
	return &Corpus{
		index:   make(InvertedIndex),
		idf:     make(map[string]float64),
		vectors: make(map[string]DocumentVector),
		norms:   make(map[string]float64),
	}
}

// DocCount returns N, the number of documents that contributed terms.
func (c *Corpus) DocCount() int { return c.docs }

// TermCount returns the number of distinct terms in the index.
func (c *Corpus) TermCount() int { return len(c.index) }

// IDF returns the inverse document frequency of term, and false when the
// term does not occur in the corpus.
func (c *Corpus) IDF(term string) (float64, bool) {
	w, ok := c.idf[term]
	return w, ok
}

// DocFreq returns the number of documents containing term.
func (c *Corpus) DocFreq(term string) int { return len(c.index[term]) }

// Postings returns the documents containing term with their raw counts,
// ordered by DocID.
func (c *Corpus) Postings(term string) []domain.Posting {
	docs := c.index[term]
	out := make([]domain.Posting, 0, len(docs))
	for doc, tf := range docs {
		out = append(out, domain.Posting{DocID: doc, TF: tf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// Terms returns every indexed term in ascending order.
func (c *Corpus) Terms() []string {
	terms := make([]string, 0, len(c.index))
	for term := range c.index {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Vector returns a copy of the weight vector of docID, or nil if the
// document is not indexed.
func (c *Corpus) Vector(docID string) DocumentVector {
	vec, ok := c.vectors[docID]
	if !ok {
		return nil
	}
	out := make(DocumentVector, len(vec))
	for term, w := range vec {
		out[term] = w
	}
	return out
}

// ProgressFunc is called once per phase-1 document with the number of
// documents processed so far. It is called from worker goroutines.
type ProgressFunc func(done, total int)

// BuildReport summarizes one indexing pass.
type BuildReport struct {
	Documents int
	Terms     int
	Skipped   []domain.SkippedDocument

	// Workers is the phase-1 pool size. WeightWorkers is the phase-2 pool
	// size; it never exceeds Workers or the number of terms.
	Workers       int
	WeightWorkers int
	Duration      time.Duration
}

// Builder runs indexing passes.
type Builder struct {
	workers  int
	logger   *zap.Logger
	progress ProgressFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers sets the worker pool size. Zero or less means one worker per
// available CPU. The pool never exceeds the number of items to process.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(b *Builder) { b.progress = fn }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build indexes docs with a default Builder.
func Build(ctx context.Context, docs []port.Document) (*Corpus, *BuildReport, error) {
	return NewBuilder().Build(ctx, docs)
}

// Build indexes docs and returns the new corpus. Per-document failures are
// reported in BuildReport.Skipped and never fail the build; only context
// cancellation does.
func (b *Builder) Build(ctx context.Context, docs []port.Document) (*Corpus, *BuildReport, error) {
	start := time.Now()
	report := &BuildReport{}

	if len(docs) == 0 {
		report.Duration = time.Since(start)
		b.logger.Info("index built", zap.Int("documents", 0), zap.Int("terms", 0))
		return EmptyCorpus(), report, nil
	}

	workers := workerCount(b.workers, len(docs))
	report.Workers = workers

	b.logger.Debug("indexing documents",
		zap.Int("documents", len(docs)),
		zap.Int("workers", workers),
	)

	index, n, skipped, err := b.buildIndex(ctx, docs, workers)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range skipped {
		b.logger.Warn("skipped document", zap.String("doc_id", s.DocID), zap.String("reason", s.Reason))
	}

	b.logger.Debug("computing weights", zap.Int("terms", len(index)), zap.Int("documents", n))

	report.WeightWorkers = workerCount(workers, len(index))
	idf, vectors, err := computeWeights(ctx, index, n, report.WeightWorkers)
	if err != nil {
		return nil, nil, fmt.Errorf("compute weights: %w", err)
	}

	norms := make(map[string]float64, len(vectors))
	for doc, vec := range vectors {
		norms[doc] = vec.norm()
	}

	corpus := &Corpus{
		index:   index,
		idf:     idf,
		vectors: vectors,
		norms:   norms,
		docs:    n,
	}

	report.Documents = n
	report.Terms = len(index)
	report.Skipped = skipped
	report.Duration = time.Since(start)

	b.logger.Info("index built",
		zap.Int("documents", n),
		zap.Int("terms", len(index)),
		zap.Int("skipped", len(skipped)),
		zap.Duration("duration", report.Duration),
	)

	return corpus, report, nil
}

// buildIndex runs phase 1 and its reduce step.
func (b *Builder) buildIndex(ctx context.Context, docs []port.Document, workers int) (InvertedIndex, int, []domain.SkippedDocument, error) {
	spans := partition(len(docs), workers)
	parts := make([]partialIndex, len(spans))

	var processed atomic.Int64
	var done func()
	if b.progress != nil {
		total := len(docs)
		done = func() {
			b.progress(int(processed.Add(1)), total)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range spans {
		i, sp := i, sp
		g.Go(func() error {
			p, err := buildPartial(gctx, docs[sp.lo:sp.hi], done)
			if err != nil {
				return err
			}
			parts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, nil, fmt.Errorf("build partial index: %w", err)
	}

	index, n, skipped := mergePartials(parts)
	return index, n, skipped, nil
}
