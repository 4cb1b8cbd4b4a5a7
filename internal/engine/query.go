package engine

import (
	"math"
	"sort"
)

// WeightedTerm is one query term and its TF-IDF weight.
type WeightedTerm struct {
	Term   string
	Weight float64
}

// QueryVector holds the weighted terms of one query, sorted by term. It only
// contains terms that occur in the corpus it was built against.
type QueryVector []WeightedTerm

// Vectorize reduces query terms to counts and weights each by the corpus idf.
// Terms absent from the corpus are dropped.
func (c *Corpus) Vectorize(terms []string) QueryVector {
	counts := make(map[string]int, len(terms))
	for _, term := range terms {
		if _, ok := c.idf[term]; ok {
			counts[term]++
		}
	}

	vec := make(QueryVector, 0, len(counts))
	for term, n := range counts {
		vec = append(vec, WeightedTerm{Term: term, Weight: float64(n) * c.idf[term]})
	}
	sort.Slice(vec, func(i, j int) bool {
		return vec[i].Term < vec[j].Term
	})
	return vec
}

// Norm returns the Euclidean length of q.
func (q QueryVector) Norm() float64 {
	var sum float64
	for _, wt := range q {
		sum += wt.Weight * wt.Weight
	}
	return math.Sqrt(sum)
}
