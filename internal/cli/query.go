package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"vsearch/internal/domain"
	"vsearch/internal/usecase"
)

var (
	queryText string
	queryTopN int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Rank files for a query",
	Long: `Build the index over the specified directory and rank its files by cosine
similarity to the query. Without -q, queries are read from stdin, one per
line, and answered against the same index.

Examples:
  vsearch query -q "authentication handler"
  vsearch query -q "database connection" -n 5 --json
  printf 'cats\ndogs\n' | vsearch query ./corpus`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (default: read queries from stdin)")
	queryCmd.Flags().IntVarP(&queryTopN, "top-n", "n", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

// QueryOutput is the JSON form of one answered query.
type QueryOutput struct {
	Query   string                  `json:"query"`
	Results []domain.ScoredDocument `json:"results"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	path, err := resolvePath(args)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	a := newApp(cfg, GetLogger())

	if _, err := a.indexer.Index(cmd.Context(), path, nil); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	topN := cfg.Search.TopN
	if cmd.Flags().Changed("top-n") {
		topN = queryTopN
	}

	out := cmd.OutOrStdout()
	if queryText != "" {
		return answer(out, a.searcher, queryText, topN)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := answer(out, a.searcher, line, topN); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read queries: %w", err)
	}
	return nil
}

func answer(w io.Writer, searcher *usecase.RetrieveUseCase, query string, topN int) error {
	results, err := searcher.Retrieve(query, topN)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, err := json.Marshal(QueryOutput{Query: query, Results: results})
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintf(w, "No results found for: %s\n\n", query)
		return nil
	}
	fmt.Fprintf(w, "Found %d results for: %s\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(w, "  %2d. %.4f  %s\n", i+1, r.Score, displayPath(r.DocID))
	}
	fmt.Fprintln(w)
	return nil
}

// displayPath shortens absolute document ids relative to the working
// directory when possible.
func displayPath(id string) string {
	wd, err := os.Getwd()
	if err != nil {
		return id
	}
	if rel, ok := strings.CutPrefix(id, wd+string(os.PathSeparator)); ok {
		return rel
	}
	return id
}
