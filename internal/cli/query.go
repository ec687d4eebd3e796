package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ragqa/internal/port"
)

var (
	querySession string
	queryText    string
	queryTopK    int
	querySource  string
	queryJSON    bool
)

type queryResult struct {
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Order  int     `json:"order"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show the passages retrieved for a question",
	Long: `Search a session and print the retrieved passages in reading order with
their similarity scores. The language model is not called.

Examples:
  ragqa query --session ID -q "maintenance interval"
  ragqa query --session ID -q "torque settings" --top-k 10 --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&querySession, "session", "s", "", "session id (required)")
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().StringVar(&querySource, "source", "", "only search this document")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("session")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir(), GetLogger(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.retrieve.Retrieve(cmd.Context(), querySession, queryText, queryTopK, port.QueryFilter{Source: querySource})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]queryResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, queryResult{
			Source: c.Chunk.Source,
			Page:   c.Chunk.Page,
			Order:  c.Chunk.Order,
			Score:  c.Score,
			Text:   c.Chunk.Text,
		})
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] %s p.%d #%d (score: %.2f) ---\n", i+1, r.Source, r.Page, r.Order, r.Score)
		text := []rune(r.Text)
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Fprintln(out, string(text))
		fmt.Fprintln(out)
	}
	return nil
}
