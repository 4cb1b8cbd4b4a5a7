package engine

import (
	"container/heap"
	"fmt"

	"vsearch/internal/domain"
)

// Rank scores every document sharing at least one term with q by cosine
// similarity and returns the topN best, highest score first. Equal scores are
// ordered by document id ascending, so results are reproducible. Documents
// scoring zero are never returned.
func (c *Corpus) Rank(q QueryVector, topN int) ([]domain.ScoredDocument, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, topN)
	}

	results := []domain.ScoredDocument{}
	qNorm := q.Norm()
	if len(q) == 0 || qNorm == 0 {
		return results, nil
	}

	top := newTopN(topN)
	for doc := range c.candidates(q) {
		score := c.cosine(q, qNorm, doc)
		if score <= 0 {
			continue
		}
		top.offer(domain.ScoredDocument{DocID: doc, Score: score})
	}

	return top.drain(), nil
}

// Search vectorizes already-normalized query terms and ranks them.
func (c *Corpus) Search(terms []string, topN int) ([]domain.ScoredDocument, error) {
	return c.Rank(c.Vectorize(terms), topN)
}

// candidates returns the union of the postings of every query term.
func (c *Corpus) candidates(q QueryVector) map[string]struct{} {
	set := make(map[string]struct{})
	for _, wt := range q {
		for doc := range c.index[wt.Term] {
			set[doc] = struct{}{}
		}
	}
	return set
}

// cosine computes dot(q, d) / (|q| * |d|) over the terms of q. A zero norm
// on either side yields 0.
func (c *Corpus) cosine(q QueryVector, qNorm float64, doc string) float64 {
	dNorm := c.norms[doc]
	if qNorm == 0 || dNorm == 0 {
		return 0
	}

	vec := c.vectors[doc]
	var dot float64
	for _, wt := range q {
		if w, ok := vec[wt.Term]; ok {
			dot += wt.Weight * w
		}
	}

	sim := dot / (qNorm * dNorm)
	if sim > 1 {
		sim = 1
	}
	return sim
}

// better reports whether a ranks ahead of b.
func better(a, b domain.ScoredDocument) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// topN keeps the best n documents offered to it in a min-heap whose root is
// the worst document kept.
type topN struct {
	limit int
	h     scoredDocHeap
}

func newTopN(limit int) *topN {
	return &topN{limit: limit, h: make(scoredDocHeap, 0, min(limit, 64))}
}

func (t *topN) offer(d domain.ScoredDocument) {
	if t.h.Len() < t.limit {
		heap.Push(&t.h, d)
		return
	}
	if better(d, t.h[0]) {
		t.h[0] = d
		heap.Fix(&t.h, 0)
	}
}

// drain empties the heap into a slice ordered best first.
func (t *topN) drain() []domain.ScoredDocument {
	out := make([]domain.ScoredDocument, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(domain.ScoredDocument)
	}
	return out
}

type scoredDocHeap []domain.ScoredDocument

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(domain.ScoredDocument))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
