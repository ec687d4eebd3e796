package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
	Long: `Create, reset and drop session collections in the configured index.

Examples:
  ragqa session new
  ragqa session new my-session
  ragqa session reset my-session
  ragqa session drop my-session`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [id]",
	Short: "Create an empty session and print its id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig(), GetRootDir(), GetLogger(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		var id string
		if len(args) > 0 {
			id = args[0]
		}
		id, err = a.sessions.Start(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Discard all documents of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig(), GetRootDir(), GetLogger(), false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.sessions.Reset(cmd.Context(), args[0])
	},
}

var sessionDropCmd = &cobra.Command{
	Use:   "drop <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig(), GetRootDir(), GetLogger(), false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.sessions.End(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd, sessionResetCmd, sessionDropCmd)
}
