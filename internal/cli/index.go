package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragqa/internal/adapter/fs"
	"ragqa/internal/port"
	"ragqa/internal/usecase"
)

var indexSession string

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index PDF documents into a session",
	Long: `Index PDF files into a session collection. Directories are walked for
files matching index.includes and not matching index.excludes.

Examples:
  ragqa index --session ID .                  # Index PDFs under the current directory
  ragqa index --session ID report.pdf a/ b/   # Index files and directories`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVarP(&indexSession, "session", "s", "", "session id (required)")
	indexCmd.MarkFlagRequired("session")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	roots := args
	if len(roots) == 0 {
		roots = []string{GetRootDir()}
	}

	files, err := collectDocuments(fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes), roots)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No PDF documents found.")
		return nil
	}

	docs := make([]usecase.DocumentInput, 0, len(files))
	for _, f := range files {
		file, size, err := fs.OpenDocument(f.Path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Path, err)
		}
		defer file.Close()
		docs = append(docs, usecase.DocumentInput{
			Source: filepath.Base(f.Path),
			Reader: file,
			Size:   size,
		})
	}

	a, err := newApp(cfg, GetRootDir(), GetLogger(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Indexing %d documents into session %s...\n", len(docs), indexSession)

	var barMu sync.Mutex
	startTime := time.Now()
	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	progress := func(done, total int, source string, _ error) {
		barMu.Lock()
		defer barMu.Unlock()

		bar.Set(done)
		elapsed := time.Since(startTime)
		if rate := float64(done) / elapsed.Seconds(); rate > 0 && done < total {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] %s ETA: %s", source, formatDuration(eta)))
		}
	}

	result, err := a.indexer.IndexDocuments(cmd.Context(), indexSession, docs, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Documents indexed: %d\n", result.DocumentsIndexed)
	fmt.Printf("  Chunks created:    %d\n", result.TotalChunks)
	fmt.Printf("  Elapsed:           %s\n", formatDuration(time.Since(startTime)))

	if len(result.Failures) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, f := range result.Failures {
			fmt.Printf("  - %s: %s\n", f.Source, f.Error)
		}
	}
	return nil
}

// collectDocuments walks every root and returns the matching files once each.
func collectDocuments(walker port.FileWalker, roots []string) ([]port.FileInfo, error) {
	seen := make(map[string]bool)
	var out []port.FileInfo

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("path does not exist: %w", err)
		}
		files, err := walker.Walk(root)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
		for _, f := range files {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
