package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragqa/internal/port"
)

var (
	promptSession  string
	promptQuestion string
	promptTopK     int
	promptSource   string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the grounding prompt for a question",
	Long: `Retrieve context for a question and print the prompt that ask would send
to the language model, without calling it.

Examples:
  ragqa prompt --session ID -q "How is the filter replaced?"`,
	Args: cobra.NoArgs,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptSession, "session", "s", "", "session id (required)")
	promptCmd.Flags().StringVarP(&promptQuestion, "question", "q", "", "question (required)")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "number of passages (default from config)")
	promptCmd.Flags().StringVar(&promptSource, "source", "", "only use passages from this document")
	promptCmd.MarkFlagRequired("session")
	promptCmd.MarkFlagRequired("question")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir(), GetLogger(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt, err := a.asker.Prompt(cmd.Context(), promptSession, promptQuestion, promptTopK, port.QueryFilter{Source: promptSource})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return nil
}
