package engine

import "errors"

var (
	// ErrInvalidTopN is returned when a search asks for zero or fewer results.
	ErrInvalidTopN = errors.New("topN must be a positive integer")

	// ErrEmptyDocumentID marks a document skipped because it has no identifier.
	ErrEmptyDocumentID = errors.New("empty document id")

	// ErrEmptyDocument marks a document skipped because it produced no terms.
	ErrEmptyDocument = errors.New("document has no terms")
)
