package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vsearch/internal/domain"
	"vsearch/internal/port"
)

type failingDoc struct {
	id string
}

func (d failingDoc) ID() string { return d.id }

func (d failingDoc) Tokens() ([]string, error) {
	return nil, errors.New("permission denied")
}

func doc(id string, terms ...string) port.Document {
	return domain.TokenDocument{Path: id, Terms: terms}
}

// generatedCorpus returns a reproducible corpus of n documents over a small
// vocabulary so that terms are shared between many documents.
func generatedCorpus(n int) []port.Document {
	rng := rand.New(rand.NewSource(7))
	vocab := make([]string, 40)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("term%02d", i)
	}

	docs := make([]port.Document, n)
	for i := range docs {
		length := 1 + rng.Intn(25)
		terms := make([]string, length)
		for j := range terms {
			// skew towards low-numbered terms
			terms[j] = vocab[rng.Intn(1+rng.Intn(len(vocab)))]
		}
		docs[i] = doc(fmt.Sprintf("doc-%03d", i), terms...)
	}
	return docs
}

func build(t *testing.T, docs []port.Document, opts ...Option) (*Corpus, *BuildReport) {
	t.Helper()
	corpus, report, err := NewBuilder(opts...).Build(context.Background(), docs)
	require.NoError(t, err)
	return corpus, report
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, k int
		want []span
	}{
		{0, 4, nil},
		{5, 1, []span{{0, 5}}},
		{5, 2, []span{{0, 3}, {3, 5}}},
		{3, 8, []span{{0, 1}, {1, 2}, {2, 3}}},
		{7, 3, []span{{0, 3}, {3, 5}, {5, 7}}},
		{4, 0, []span{{0, 4}}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,k=%d", tt.n, tt.k), func(t *testing.T) {
			assert.Equal(t, tt.want, partition(tt.n, tt.k))
		})
	}
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 3, workerCount(8, 3), "never more workers than items")
	assert.Equal(t, 2, workerCount(2, 100))
	assert.Equal(t, 1, workerCount(4, 0))
	assert.GreaterOrEqual(t, workerCount(0, 1000), 1)
}

func TestBuild_PartitionInvariance(t *testing.T) {
	docs := generatedCorpus(97)

	reference, _, _, err := NewBuilder(WithWorkers(1)).buildIndex(context.Background(), docs, 1)
	require.NoError(t, err)
	refCorpus, _ := build(t, docs, WithWorkers(1))

	for _, k := range []int{2, 3, 4, 7, 16, 97, 200} {
		t.Run(fmt.Sprintf("workers=%d", k), func(t *testing.T) {
			index, n, skipped, err := NewBuilder().buildIndex(context.Background(), docs, workerCount(k, len(docs)))
			require.NoError(t, err)
			assert.Empty(t, skipped)
			assert.Equal(t, reference, index)
			assert.Equal(t, len(docs), n)

			corpus, report := build(t, docs, WithWorkers(k))
			assert.Equal(t, refCorpus.DocCount(), corpus.DocCount())
			assert.Equal(t, refCorpus.idf, corpus.idf)
			assert.Equal(t, refCorpus.vectors, corpus.vectors)
			assert.Equal(t, refCorpus.norms, corpus.norms)
			assert.LessOrEqual(t, report.Workers, len(docs))
		})
	}
}

func TestBuild_WeightPoolClampedToDocuments(t *testing.T) {
	terms := make([]string, 100)
	for i := range terms {
		terms[i] = fmt.Sprintf("w%03d", i)
	}
	docs := []port.Document{doc("only", terms...)}

	for _, k := range []int{0, 8} {
		corpus, report := build(t, docs, WithWorkers(k))
		assert.Equal(t, 1, report.Workers)
		assert.Equal(t, 1, report.WeightWorkers, "workers=%d", k)
		assert.Equal(t, 100, corpus.TermCount())
	}

	docs = append(docs, doc("second", "w000"))
	_, report := build(t, docs, WithWorkers(8))
	assert.Equal(t, 2, report.WeightWorkers)
}

func TestMergePartials_SumsOverlappingPostings(t *testing.T) {
	parts := []partialIndex{
		{index: InvertedIndex{"cat": {"a": 2}, "dog": {"a": 1}}, docs: []string{"a"}},
		{index: InvertedIndex{"cat": {"a": 1, "b": 4}}, docs: []string{"a", "b"}},
		{skipped: []domain.SkippedDocument{{DocID: "c", Reason: "empty"}}},
	}

	index, n, skipped := mergePartials(parts)

	assert.Equal(t, InvertedIndex{"cat": {"a": 3, "b": 4}, "dog": {"a": 1}}, index)
	assert.Equal(t, 2, n, "a document split across partitions counts once")
	assert.Len(t, skipped, 1)
}

func TestBuild_DuplicateIDsMergeAsOneDocument(t *testing.T) {
	corpus, report := build(t, []port.Document{
		doc("same", "cat"),
		doc("other", "dog"),
		doc("same", "cat", "bird"),
	}, WithWorkers(3))

	assert.Equal(t, 2, corpus.DocCount())
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, map[string]int{"same": 2}, corpus.index["cat"])
}

func TestCorpus_Postings(t *testing.T) {
	corpus, _ := build(t, []port.Document{
		doc("b", "cat", "cat", "dog"),
		doc("a", "cat"),
		doc("c", "dog"),
	}, WithWorkers(2))

	assert.Equal(t, []domain.Posting{{DocID: "a", TF: 1}, {DocID: "b", TF: 2}}, corpus.Postings("cat"))
	assert.Equal(t, 2, corpus.DocFreq("dog"))
	assert.Empty(t, corpus.Postings("bird"))
	assert.Equal(t, []string{"cat", "dog"}, corpus.Terms())
}

func TestBuild_SkipsUnusableDocuments(t *testing.T) {
	corpus, report := build(t, []port.Document{
		doc("good", "alpha", "beta"),
		doc("", "alpha"),
		doc("blank"),
		doc("only-empty-terms", "", ""),
		failingDoc{id: "locked"},
	}, WithWorkers(2))

	assert.Equal(t, 1, corpus.DocCount())
	require.Len(t, report.Skipped, 4)

	reasons := make(map[string]string)
	for _, s := range report.Skipped {
		reasons[s.DocID] = s.Reason
	}
	assert.Equal(t, ErrEmptyDocumentID.Error(), reasons[""])
	assert.Equal(t, ErrEmptyDocument.Error(), reasons["blank"])
	assert.Equal(t, ErrEmptyDocument.Error(), reasons["only-empty-terms"])
	assert.Contains(t, reasons["locked"], "permission denied")

	for term, postings := range corpus.index {
		for id, tf := range postings {
			assert.GreaterOrEqual(t, tf, 1, "term %q doc %q", term, id)
			assert.Equal(t, "good", id)
		}
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	for _, docs := range [][]port.Document{nil, {doc("blank")}} {
		corpus, report := build(t, docs)
		assert.Equal(t, 0, corpus.DocCount())
		assert.Equal(t, 0, corpus.TermCount())
		assert.Equal(t, 0, report.Documents)

		results, err := corpus.Search([]string{"anything"}, 5)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
}

func TestBuild_Progress(t *testing.T) {
	docs := generatedCorpus(50)
	var calls atomic.Int64
	var maxDone atomic.Int64

	build(t, docs, WithWorkers(4), WithProgress(func(done, total int) {
		calls.Add(1)
		assert.Equal(t, 50, total)
		for {
			cur := maxDone.Load()
			if int64(done) <= cur || maxDone.CompareAndSwap(cur, int64(done)) {
				break
			}
		}
	}))

	assert.Equal(t, int64(50), calls.Load())
	assert.Equal(t, int64(50), maxDone.Load())
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewBuilder().Build(ctx, generatedCorpus(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIDFBounds(t *testing.T) {
	corpus, _ := build(t, append(generatedCorpus(60), doc("everywhere-1", "term00"), doc("everywhere-2", "term00")))
	n := corpus.DocCount()
	maxIDF := math.Log(float64(n))

	for _, term := range corpus.Terms() {
		idf, ok := corpus.IDF(term)
		require.True(t, ok)
		assert.GreaterOrEqual(t, idf, 0.0)
		assert.LessOrEqual(t, idf, maxIDF+1e-12)
		if corpus.DocFreq(term) == n {
			assert.Equal(t, 0.0, idf, "term %q in every document", term)
		} else {
			assert.Greater(t, idf, 0.0, "term %q", term)
		}
	}

	_, ok := corpus.IDF("missing")
	assert.False(t, ok)
}

func TestDocumentVector_ContainsEveryTermOfTheDocument(t *testing.T) {
	corpus, _ := build(t, []port.Document{
		doc("docA", "cat", "dog", "cat"),
		doc("docB", "dog", "bird"),
	})

	vecA := corpus.Vector("docA")
	require.Len(t, vecA, 2)
	assert.InDelta(t, 2*math.Ln2, vecA["cat"], 1e-12)
	assert.Equal(t, 0.0, vecA["dog"])

	vecB := corpus.Vector("docB")
	require.Len(t, vecB, 2)
	assert.InDelta(t, math.Ln2, vecB["bird"], 1e-12)

	assert.Nil(t, corpus.Vector("docC"))
}

func TestSearch_CatDogBird(t *testing.T) {
	corpus, _ := build(t, []port.Document{
		doc("docA", "cat", "dog", "cat"),
		doc("docB", "dog", "bird"),
	})
	require.Equal(t, 2, corpus.DocCount())

	q := corpus.Vectorize([]string{"cat", "bird"})
	require.Len(t, q, 2)
	assert.Equal(t, "bird", q[0].Term)
	assert.InDelta(t, math.Ln2, q[0].Weight, 1e-12)
	assert.InDelta(t, math.Ln2, q[1].Weight, 1e-12)

	all, err := corpus.Rank(q, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// each document matches exactly one of the two equally weighted query terms
	assert.InDelta(t, 1/math.Sqrt2, all[0].Score, 1e-12)
	assert.Equal(t, all[0].Score, all[1].Score)
	assert.Equal(t, "docA", all[0].DocID, "ties break by document id")

	one, err := corpus.Rank(q, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, all[0], one[0])

	single, err := corpus.Search([]string{"cat"}, 1)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "docA", single[0].DocID)
	assert.InDelta(t, 1.0, single[0].Score, 1e-12)
}

func TestSearch_UnknownAndZeroWeightTerms(t *testing.T) {
	corpus, _ := build(t, []port.Document{
		doc("docA", "cat", "dog"),
		doc("docB", "dog", "bird"),
	})

	assert.Empty(t, corpus.Vectorize([]string{"zebra", "yak"}))

	results, err := corpus.Search([]string{"zebra"}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	// "dog" is in every document, so its idf and every similarity are zero
	results, err = corpus.Search([]string{"dog"}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_InvalidTopN(t *testing.T) {
	for _, corpus := range []*Corpus{EmptyCorpus(), func() *Corpus {
		c, _ := build(t, []port.Document{doc("a", "x")})
		return c
	}()} {
		for _, n := range []int{0, -1} {
			_, err := corpus.Search([]string{"x"}, n)
			assert.ErrorIs(t, err, ErrInvalidTopN)
		}
	}
}

func TestSearch_ZeroOverlapPruning(t *testing.T) {
	corpus, _ := build(t, []port.Document{
		doc("animals", "cat", "dog"),
		doc("plants", "fern", "moss"),
		doc("mixed", "cat", "moss"),
	})

	results, err := corpus.Search([]string{"cat"}, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "plants", r.DocID)
	}
	assert.Len(t, results, 2)
	assert.NotContains(t, corpus.candidates(corpus.Vectorize([]string{"cat"})), "plants")
}

func TestSearch_TopNBoundOrderAndRange(t *testing.T) {
	docs := generatedCorpus(120)
	corpus, _ := build(t, docs, WithWorkers(4))

	queries := [][]string{
		{"term05"},
		{"term01", "term17", "term17"},
		{"term30", "term31", "term32", "term00"},
		{"term39", "nope"},
	}

	for _, q := range queries {
		for _, n := range []int{1, 3, 10, 500} {
			results, err := corpus.Search(q, n)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(results), n)
			for i, r := range results {
				assert.Greater(t, r.Score, 0.0)
				assert.LessOrEqual(t, r.Score, 1.0)
				if i > 0 {
					assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
				}
			}
		}
	}
}

func TestSearch_HeapMatchesFullSort(t *testing.T) {
	corpus, _ := build(t, generatedCorpus(150), WithWorkers(3))
	q := corpus.Vectorize([]string{"term02", "term09", "term21"})
	qNorm := q.Norm()

	all := []domain.ScoredDocument{}
	for id := range corpus.vectors {
		if s := corpus.cosine(q, qNorm, id); s > 0 {
			all = append(all, domain.ScoredDocument{DocID: id, Score: s})
		}
	}
	sort.Slice(all, func(i, j int) bool { return better(all[i], all[j]) })

	for _, n := range []int{1, 5, 20, len(all) + 10} {
		got, err := corpus.Rank(q, n)
		require.NoError(t, err)
		want := all
		if len(want) > n {
			want = want[:n]
		}
		assert.Equal(t, want, got, "topN=%d", n)
	}
}

func TestSearch_TieBreakAtBoundary(t *testing.T) {
	// identical documents produce identical scores
	corpus, _ := build(t, []port.Document{
		doc("d", "apple", "pear"),
		doc("b", "apple", "pear"),
		doc("c", "apple", "pear"),
		doc("a", "apple", "pear"),
		doc("z", "kiwi"),
	}, WithWorkers(2))

	for i := 0; i < 10; i++ {
		results, err := corpus.Search([]string{"apple"}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].DocID)
		assert.Equal(t, "b", results[1].DocID)
	}
}

func TestSearch_ConcurrentQueries(t *testing.T) {
	corpus, _ := build(t, generatedCorpus(80))
	want, err := corpus.Search([]string{"term03", "term11"}, 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := corpus.Search([]string{"term03", "term11"}, 5)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
