package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"ragqa/config"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/store"
	"ragqa/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding ragqa.yaml and the bolt index")
	session := flag.String("session", "", "Session to search")
	query := flag.String("q", "", "Question to test")
	topK := flag.Int("k", 10, "Number of results")
	source := flag.String("source", "", "Only search this document")
	flag.Parse()

	if *topK < 1 || *topK > config.MaxTopK {
		fmt.Fprintf(os.Stderr, "-k must be between 1 and %d\n", config.MaxTopK)
		os.Exit(1)
	}
	if *query == "" || *session == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -session ID -q \"question\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding model and index contents")
		fmt.Println("  2. Similarity of the top matches to the question")
		fmt.Println("  3. Whether retrieval quality looks usable")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	embedder, err := setupEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	dbPath := cfg.BoltPath(*dir)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "No bolt index at %s - run 'ragqa index' with store.backend=bolt\n", dbPath)
		os.Exit(1)
	}
	index, schema, err := store.OpenBoltSessionIndexReadOnly(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer index.Close()
	if reason := schema.Mismatch(embedder.ModelName(), embedder.Dimension()); reason != "" {
		fmt.Fprintf(os.Stderr, "Index does not match the configured embedder: %s\n", reason)
		fmt.Fprintf(os.Stderr, "Re-run 'ragqa index' to rebuild it; the benchmark never modifies the index.\n")
		index.Close()
		os.Exit(1)
	}

	sessions, _ := index.Sessions()

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Sessions indexed: %d\n", len(sessions))
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	queryVec, err := embedder.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Query embedded: %d dimensions\n\n", len(queryVec[0]))

	results, err := index.Query(ctx, *session, queryVec[0], *topK, port.QueryFilter{Source: *source})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Printf("Session %s has no matching passages.\n", *session)
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := []rune(r.Point.Text)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		similarity := r.Score
		totalScore += similarity

		fmt.Printf("%d. [%s %.3f] %s p.%d #%d\n", i+1, rating(similarity), similarity, r.Point.Source, r.Point.Page, r.Point.Order)
		fmt.Printf("   %s\n\n", strings.ReplaceAll(string(preview), "\n", " "))
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a better embedding model or smaller chunks")
	}
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func setupEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Dimension: ec.Dimension,
			Timeout:   ec.Timeout,
		}), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKeyEnv: ec.APIKeyEnv,
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Dimension: ec.Dimension,
			Timeout:   ec.Timeout,
		})
	case "hash":
		return embedding.NewHashEmbedder(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ec.Provider)
	}
}
