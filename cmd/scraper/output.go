package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aluiziolira/go-crawl-books/config"
	"github.com/aluiziolira/go-crawl-books/models"
	"github.com/aluiziolira/go-crawl-books/pipeline"
)

func createWriter(ctx context.Context, cfg *config.Config, runID string) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case config.FormatJSON:
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case config.FormatCSV:
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case config.FormatDual:
		return pipeline.NewDualWriter(cfg.OutputFile, jsonPathFor(cfg.OutputFile))
	case config.FormatSQLite:
		return pipeline.NewSQLiteWriter(cfg.OutputFile, runID)
	case config.FormatMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return pipeline.NewMongoWriter(connectCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, runID)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

// jsonPathFor names the JSON Lines companion of a CSV output file.
func jsonPathFor(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".jsonl"
}

func printSummary(w io.Writer, result *models.ScraperResult, duration time.Duration, output string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Crawl complete")

	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "  Records:       %d\n", result.TotalCount)
	fmt.Fprintf(w, "  Listing pages: %d\n", result.PageCount)
	fmt.Fprintf(w, "  Detail pages:  %d\n", result.DetailCount)
	if result.DuplicateCount > 0 {
		fmt.Fprintf(w, "  Duplicates:    %d\n", result.DuplicateCount)
	}

	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	fmt.Fprintf(w, "  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %s\n", formatCounts(result.ErrorsByType))
	}
	if len(result.MissingByField) > 0 {
		fmt.Fprintf(w, "  Missing:       %s\n", formatCounts(result.MissingByField))
	}

	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.TotalCount) / duration.Seconds()
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Fprintf(w, "  Output:        %s\n", output)
	fmt.Fprintln(w, separator)
}

// formatCounts renders a counter map with stable key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
