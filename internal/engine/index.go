package engine

import (
	"context"
	"fmt"

	"vsearch/internal/domain"
	"vsearch/internal/port"
)

// InvertedIndex maps a term to the raw frequency of that term in every
// document containing it. Frequencies are always >= 1.
type InvertedIndex map[string]map[string]int

// partialIndex is the output of one phase-1 worker.
type partialIndex struct {
	index   InvertedIndex
	docs    []string
	skipped []domain.SkippedDocument
}

// buildPartial indexes one partition of documents. Documents that cannot be
// loaded or yield no terms are recorded as skipped and contribute nothing.
func buildPartial(ctx context.Context, docs []port.Document, done func()) (partialIndex, error) {
	p := partialIndex{index: make(InvertedIndex)}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return p, err
		}

		id := doc.ID()
		tokens, err := loadTerms(doc)
		if done != nil {
			done()
		}
		if err != nil {
			p.skipped = append(p.skipped, domain.SkippedDocument{DocID: id, Reason: err.Error()})
			continue
		}

		for _, term := range tokens {
			postings, ok := p.index[term]
			if !ok {
				postings = make(map[string]int)
				p.index[term] = postings
			}
			postings[id]++
		}
		p.docs = append(p.docs, id)
	}

	return p, nil
}

// loadTerms returns the non-empty terms of doc.
func loadTerms(doc port.Document) ([]string, error) {
	if doc.ID() == "" {
		return nil, ErrEmptyDocumentID
	}

	tokens, err := doc.Tokens()
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	terms := tokens[:0:0]
	for _, t := range tokens {
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil, ErrEmptyDocument
	}
	return terms, nil
}

// mergePartials folds partial indices into one global index, summing counts
// for any (term, document) pair seen in more than one partition. Each partial
// is released as soon as it has been folded in. N is the number of distinct
// documents that contributed terms.
func mergePartials(parts []partialIndex) (InvertedIndex, int, []domain.SkippedDocument) {
	global := make(InvertedIndex)
	counted := make(map[string]struct{})
	var skipped []domain.SkippedDocument

	for i := range parts {
		for term, postings := range parts[i].index {
			dst, ok := global[term]
			if !ok {
				global[term] = postings
				continue
			}
			for doc, tf := range postings {
				dst[doc] += tf
			}
		}
		for _, id := range parts[i].docs {
			counted[id] = struct{}{}
		}
		skipped = append(skipped, parts[i].skipped...)
		parts[i] = partialIndex{}
	}

	return global, len(counted), skipped
}
