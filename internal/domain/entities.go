package domain

// Posting is one (document, raw term frequency) entry for a term.
type Posting struct {
	DocID string `json:"doc_id"`
	TF    int    `json:"tf"`
}

// TermInfo describes how the served corpus weights one term.
type TermInfo struct {
	Term     string    `json:"term"`
	DocFreq  int       `json:"doc_freq"`
	IDF      float64   `json:"idf"`
	Postings []Posting `json:"postings"`
}

// ScoredDocument is a ranked search hit.
type ScoredDocument struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Stats describes the currently published corpus.
type Stats struct {
	TotalDocs  int    `json:"documents"`
	TotalTerms int    `json:"terms"`
	Generation uint64 `json:"generation"`
}

// SkippedDocument records a document that contributed nothing to an index build.
type SkippedDocument struct {
	DocID  string `json:"doc_id"`
	Reason string `json:"reason"`
}

// TokenDocument is a document whose tokens are already known.
type TokenDocument struct {
	Path  string
	Terms []string
}

func (d TokenDocument) ID() string { return d.Path }

func (d TokenDocument) Tokens() ([]string, error) { return d.Terms, nil }
