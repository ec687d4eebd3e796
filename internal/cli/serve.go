package cli

import (
	"github.com/spf13/cobra"

	"ragqa/internal/adapter/httpapi"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the session, upload and question endpoints over HTTP.

Examples:
  ragqa serve
  ragqa serve --listen :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := newApp(cfg, GetRootDir(), GetLogger(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Sessions: a.sessions,
		Indexer:  a.indexer,
		Asker:    a.asker,
		Metrics:  a.metrics,
	}, httpapi.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, a.logger)

	return srv.ListenAndServe(cmd.Context(), addr)
}
