package usecase

import (
	"fmt"
	"time"

	"vsearch/internal/adapter/metrics"
	"vsearch/internal/domain"
	"vsearch/internal/engine"
	"vsearch/internal/port"
)

// RetrieveUseCase handles search operations.
type RetrieveUseCase struct {
	retriever         port.Retriever
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
	metrics           *metrics.Metrics
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	retriever port.Retriever,
	minScoreThreshold float64,
	m *metrics.Metrics,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		retriever:         retriever,
		minScoreThreshold: minScoreThreshold,
		metrics:           m,
	}
}

// Retrieve returns at most topN documents ranked by cosine similarity to
// query, best first. The result is empty, never nil, when nothing matches.
func (u *RetrieveUseCase) Retrieve(query string, topN int) ([]domain.ScoredDocument, error) {
	start := time.Now()

	if topN <= 0 {
		err := fmt.Errorf("%w: got %d", engine.ErrInvalidTopN, topN)
		u.metrics.ObserveSearch(time.Since(start), 0, err)
		return nil, err
	}

	results, err := u.retriever.Search(query, topN)
	if err != nil {
		u.metrics.ObserveSearch(time.Since(start), 0, err)
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}
	if results == nil {
		results = []domain.ScoredDocument{}
	}

	u.metrics.ObserveSearch(time.Since(start), len(results), nil)
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.ScoredDocument) []domain.ScoredDocument {
	filtered := make([]domain.ScoredDocument, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
