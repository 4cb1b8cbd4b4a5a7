package port

import "vsearch/internal/domain"

// Retriever defines the interface for searching the indexed corpus.
type Retriever interface {
	// Search ranks documents against the query and returns at most topN results.
	Search(query string, topN int) ([]domain.ScoredDocument, error)
}
