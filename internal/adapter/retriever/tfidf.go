package retriever

import (
	"fmt"
	"sync/atomic"

	"vsearch/internal/domain"
	"vsearch/internal/engine"
	"vsearch/internal/port"
)

type snapshot struct {
	corpus     *engine.Corpus
	generation uint64
}

// TFIDFRetriever answers queries against the most recently published corpus.
// Publishing swaps the whole snapshot at once, so a query sees either the old
// corpus or the new one, never a mix.
type TFIDFRetriever struct {
	current   atomic.Pointer[snapshot]
	tokenizer port.Tokenizer
}

func NewTFIDFRetriever(tokenizer port.Tokenizer) *TFIDFRetriever {
	r := &TFIDFRetriever{tokenizer: tokenizer}
	r.current.Store(&snapshot{corpus: engine.EmptyCorpus()})
	return r
}

// Publish replaces the served corpus and returns the new generation number.
func (r *TFIDFRetriever) Publish(corpus *engine.Corpus) uint64 {
	if corpus == nil {
		corpus = engine.EmptyCorpus()
	}
	for {
		old := r.current.Load()
		next := &snapshot{corpus: corpus, generation: old.generation + 1}
		if r.current.CompareAndSwap(old, next) {
			return next.generation
		}
	}
}

// Corpus returns the corpus currently served.
func (r *TFIDFRetriever) Corpus() *engine.Corpus {
	return r.current.Load().corpus
}

// DocCount returns N for the corpus currently served.
func (r *TFIDFRetriever) DocCount() int {
	return r.Corpus().DocCount()
}

func (r *TFIDFRetriever) Stats() domain.Stats {
	snap := r.current.Load()
	return domain.Stats{
		TotalDocs:  snap.corpus.DocCount(),
		TotalTerms: snap.corpus.TermCount(),
		Generation: snap.generation,
	}
}

// Search normalizes query with the same tokenizer used for documents and
// ranks the current corpus against it.
func (r *TFIDFRetriever) Search(query string, topN int) ([]domain.ScoredDocument, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: got %d", engine.ErrInvalidTopN, topN)
	}

	corpus := r.Corpus()
	terms := r.tokenizer.Tokenize(query)
	return corpus.Rank(corpus.Vectorize(terms), topN)
}

// Explain looks up each distinct term of text, in order of first
// occurrence, in the served corpus. Terms the corpus does not contain are
// reported with DocFreq 0.
func (r *TFIDFRetriever) Explain(text string) []domain.TermInfo {
	corpus := r.Corpus()
	seen := make(map[string]bool)
	out := make([]domain.TermInfo, 0)
	for _, term := range r.tokenizer.Tokenize(text) {
		if seen[term] {
			continue
		}
		seen[term] = true
		idf, _ := corpus.IDF(term)
		out = append(out, domain.TermInfo{
			Term:     term,
			DocFreq:  corpus.DocFreq(term),
			IDF:      idf,
			Postings: corpus.Postings(term),
		})
	}
	return out
}

// Weights returns the TF-IDF vector of docID in the served corpus.
func (r *TFIDFRetriever) Weights(docID string) (map[string]float64, bool) {
	vec := r.Corpus().Vector(docID)
	if vec == nil {
		return nil, false
	}
	return vec, true
}
