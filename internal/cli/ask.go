package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ragqa/internal/port"
)

var (
	askSession  string
	askQuestion string
	askTopK     int
	askSource   string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from a session's documents",
	Long: `Retrieve the most relevant passages of a session and ask the language
model to answer from them. References list the passages used.

Examples:
  ragqa ask --session ID -q "What voltage does the pump need?"
  ragqa ask --session ID -q "Summarize the warranty" --source warranty.pdf --json`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id (required)")
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages (default from config)")
	askCmd.Flags().StringVar(&askSource, "source", "", "only use passages from this document")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("session")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir(), GetLogger(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.asker.Ask(cmd.Context(), askSession, askQuestion, askTopK, port.QueryFilter{Source: askSource})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, answer.Text)
	if len(answer.References) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nReferences:\n")
	for i, r := range answer.References {
		fmt.Fprintf(out, "--- [%d] %s p.%d #%d ---\n%s\n", i+1, r.Source, r.Page, r.Order, r.Snippet)
	}
	return nil
}
