package engine

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DocumentVector maps a term to its TF-IDF weight in one document. Every term
// the document contains is present, including terms whose weight is zero.
type DocumentVector map[string]float64

// weightPartial is the output of one phase-2 worker.
type weightPartial struct {
	idf     map[string]float64
	vectors map[string]DocumentVector
}

// inverseDocumentFrequency is ln(N/df). df >= 1 for every indexed term and
// df <= N, so the result is finite and non-negative.
func inverseDocumentFrequency(n, df int) float64 {
	return math.Log(float64(n) / float64(df))
}

// computeWeights partitions the sorted term list across workers; each worker
// computes idf for its terms and fills a private weight map from read-only
// access to index. The private maps are merged after all workers finish.
func computeWeights(ctx context.Context, index InvertedIndex, n, workers int) (map[string]float64, map[string]DocumentVector, error) {
	idf := make(map[string]float64, len(index))
	vectors := make(map[string]DocumentVector)
	if len(index) == 0 {
		return idf, vectors, nil
	}

	terms := make([]string, 0, len(index))
	for term := range index {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	spans := partition(len(terms), workerCount(workers, len(terms)))
	parts := make([]weightPartial, len(spans))

	g, ctx := errgroup.WithContext(ctx)
	for i, sp := range spans {
		i, sp := i, sp
		g.Go(func() error {
			local := weightPartial{
				idf:     make(map[string]float64, sp.hi-sp.lo),
				vectors: make(map[string]DocumentVector),
			}
			for _, term := range terms[sp.lo:sp.hi] {
				if err := ctx.Err(); err != nil {
					return err
				}
				postings := index[term]
				w := inverseDocumentFrequency(n, len(postings))
				local.idf[term] = w
				for doc, tf := range postings {
					vec, ok := local.vectors[doc]
					if !ok {
						vec = make(DocumentVector)
						local.vectors[doc] = vec
					}
					vec[term] = float64(tf) * w
				}
			}
			parts[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i := range parts {
		for term, w := range parts[i].idf {
			idf[term] = w
		}
		for doc, vec := range parts[i].vectors {
			dst, ok := vectors[doc]
			if !ok {
				vectors[doc] = vec
				continue
			}
			for term, w := range vec {
				dst[term] = w
			}
		}
		parts[i] = weightPartial{}
	}

	return idf, vectors, nil
}

// norm returns the Euclidean length of v, summing in term order so the result
// does not depend on map iteration.
func (v DocumentVector) norm() float64 {
	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var sum float64
	for _, term := range terms {
		sum += v[term] * v[term]
	}
	return math.Sqrt(sum)
}
