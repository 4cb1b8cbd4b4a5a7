package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"vsearch/config"
	"vsearch/internal/adapter/analyzer"
	"vsearch/internal/adapter/fs"
	"vsearch/internal/domain"
	"vsearch/internal/engine"
	"vsearch/internal/port"
)

type run struct {
	workers  int
	duration time.Duration
	corpus   *engine.Corpus
	report   *engine.BuildReport
}

func main() {
	root := flag.String("dir", ".", "Directory to index")
	workerList := flag.String("workers", "", "Comma-separated worker counts (default 1,2,4,...,GOMAXPROCS)")
	query := flag.String("q", "", "Optional query to rank with every build")
	topN := flag.Int("n", 10, "Number of results for -q")
	rounds := flag.Int("rounds", 3, "Builds per worker count; the fastest is reported")
	flag.Parse()

	cfg, err := config.LoadFromDir(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	counts, err := parseWorkers(*workerList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tokenizer := analyzer.NewTokenizer(cfg.Index.Stemming,
		analyzer.WithStopwords(cfg.Index.Stopwords),
		analyzer.WithMinTokenLen(cfg.Index.MinTokenLen),
	)
	files, err := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes).Walk(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking %s: %v\n", *root, err)
		os.Exit(1)
	}

	// tokenize once so the timings measure the index build alone
	input := pretokenize(files, tokenizer)
	docs := input.docs
	for _, s := range input.unreadable {
		fmt.Fprintf(os.Stderr, "Skipping %s: %s\n", s.DocID, s.Reason)
	}

	fmt.Println("INDEX BUILD BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Directory: %s\n", *root)
	fmt.Printf("Files:     %d (%d unreadable)\n", len(files), len(input.unreadable))
	fmt.Printf("Words:     %d raw, %d indexed tokens\n", input.words, input.tokens)
	fmt.Printf("CPUs:      %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	var runs []run
	for _, k := range counts {
		r, err := bench(docs, k, *rounds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Build with %d workers failed: %v\n", k, err)
			os.Exit(1)
		}
		runs = append(runs, r)
	}

	base := runs[0]
	fmt.Printf("%-8s %-12s %-8s %-10s %-10s %-8s\n", "workers", "duration", "speedup", "documents", "terms", "skipped")
	fmt.Println(strings.Repeat("-", 70))
	for _, r := range runs {
		speedup := float64(base.duration) / float64(r.duration)
		fmt.Printf("%-8d %-12s %-8.2f %-10d %-10d %-8d\n",
			r.workers, r.duration.Round(time.Microsecond), speedup, r.corpus.DocCount(), r.corpus.TermCount(), len(r.report.Skipped))
	}
	fmt.Println()

	mismatches := 0
	for _, r := range runs[1:] {
		if diff := compare(base.corpus, r.corpus); diff != "" {
			fmt.Printf("MISMATCH workers=%d vs workers=%d: %s\n", base.workers, r.workers, diff)
			mismatches++
		}
	}

	if *query != "" {
		terms := tokenizer.Tokenize(*query)
		want, err := base.corpus.Search(terms, *topN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Query: %q\n", *query)
		for i, d := range want {
			fmt.Printf("  %2d. %.4f  %s\n", i+1, d.Score, d.DocID)
		}
		for _, r := range runs[1:] {
			got, _ := r.corpus.Search(terms, *topN)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				fmt.Printf("MISMATCH ranking with workers=%d\n", r.workers)
				mismatches++
			}
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 70))
	if mismatches > 0 {
		fmt.Printf("Status: FAIL - %d mismatches across worker counts\n", mismatches)
		os.Exit(1)
	}
	fmt.Println("Status: OK - identical index for every worker count")
}

func parseWorkers(s string) ([]int, error) {
	if s == "" {
		var counts []int
		for k := 1; k < runtime.GOMAXPROCS(0); k *= 2 {
			counts = append(counts, k)
		}
		return append(counts, runtime.GOMAXPROCS(0)), nil
	}

	var counts []int
	for _, part := range strings.Split(s, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || k <= 0 {
			return nil, fmt.Errorf("invalid worker count %q", part)
		}
		counts = append(counts, k)
	}
	return counts, nil
}

type tokenized struct {
	docs       []port.Document
	unreadable []domain.SkippedDocument
	words      int
	tokens     int
}

// pretokenize reads and tokenizes every file. Unreadable files are left out
// of the corpus and listed, the same way a build skips them.
func pretokenize(files []port.FileInfo, tokenizer *analyzer.Tokenizer) tokenized {
	out := tokenized{docs: make([]port.Document, 0, len(files))}
	for _, f := range files {
		content, err := fs.ReadFile(f.Path)
		if err != nil {
			out.unreadable = append(out.unreadable, domain.SkippedDocument{DocID: f.Path, Reason: err.Error()})
			continue
		}
		terms := tokenizer.Tokenize(content)
		out.words += tokenizer.CountTokens(content)
		out.tokens += len(terms)
		out.docs = append(out.docs, domain.TokenDocument{Path: f.Path, Terms: terms})
	}
	return out
}

func bench(docs []port.Document, workers, rounds int) (run, error) {
	best := run{workers: workers, duration: math.MaxInt64}
	for i := 0; i < max(rounds, 1); i++ {
		start := time.Now()
		corpus, report, err := engine.NewBuilder(engine.WithWorkers(workers)).Build(context.Background(), docs)
		if err != nil {
			return run{}, err
		}
		if d := time.Since(start); d < best.duration {
			best.duration = d
			best.corpus = corpus
			best.report = report
		}
	}
	return best, nil
}

// compare returns a description of the first difference between a and b, or
// "" if they hold the same index and weights.
func compare(a, b *engine.Corpus) string {
	if a.DocCount() != b.DocCount() {
		return fmt.Sprintf("documents %d != %d", a.DocCount(), b.DocCount())
	}
	if a.TermCount() != b.TermCount() {
		return fmt.Sprintf("terms %d != %d", a.TermCount(), b.TermCount())
	}
	for _, term := range a.Terms() {
		wa, _ := a.IDF(term)
		wb, ok := b.IDF(term)
		if !ok || wa != wb || a.DocFreq(term) != b.DocFreq(term) {
			return fmt.Sprintf("term %q differs", term)
		}
	}
	return ""
}
