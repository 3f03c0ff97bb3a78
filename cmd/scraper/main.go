package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-crawl-books/config"
	"github.com/aluiziolira/go-crawl-books/pipeline"
	"github.com/aluiziolira/go-crawl-books/scraper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Crawl the book catalog and export one record per book",
		Long: `scraper walks the paginated catalog starting at --base-url, follows every
book tile to its detail page, and writes one record per book with the
fields title, price, amount_in_stock, rating, category, description and upc.

Settings come from defaults, an optional YAML file (--config), SCRAPER_*
environment variables and flags, in increasing order of priority.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.String("base-url", defaults.BaseURL, "First listing page to crawl")
	flags.StringSlice("allowed-domains", nil, "Hosts the crawler may visit (default: the base URL host)")
	flags.Int("max-pages", defaults.MaxPages, "Maximum listing pages to crawl (0 follows every page)")
	flags.Int("parallelism", defaults.Parallelism, "Number of concurrent requests")
	flags.Duration("delay", defaults.Delay, "Delay between requests")
	flags.Duration("random-delay", defaults.RandomDelay, "Random jitter added to delay")
	flags.Duration("timeout", defaults.Timeout, "Per-request timeout")
	flags.Int("max-retries", defaults.MaxRetries, "Maximum retry attempts per URL")
	flags.Duration("retry-backoff", defaults.RetryBackoff, "Initial retry backoff")
	flags.Duration("retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff")
	flags.Bool("respect-robots-txt", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	flags.StringP("output-file", "o", defaults.OutputFile, "Output file path (csv, json, dual, sqlite)")
	flags.StringP("output-format", "f", defaults.OutputFormat, "Output format: csv, json, dual, sqlite, or mongo")
	flags.String("mongo-uri", defaults.MongoURI, "MongoDB connection string for mongo output")
	flags.String("mongo-database", defaults.MongoDatabase, "MongoDB database for mongo output")
	flags.String("mongo-collection", defaults.MongoCollection, "MongoDB collection for mongo output")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header sent with every request")
	flags.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.Int("pipeline-buffer-size", defaults.PipelineBufferSize, "Records buffered between the crawler and the writers")
	flags.Int("batch-size", defaults.BatchSize, "Records per writer batch")
	flags.Int("dedupe-max-size", defaults.DedupeMaxSize, "URLs remembered for duplicate detection")
	flags.BoolP("verbose", "v", defaults.Verbose, "Enable verbose logging")

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return err
	}

	slog.Info("starting crawl",
		slog.String("run_id", s.RunID()),
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	writer, err := createWriter(ctx, cfg, s.RunID())
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		return err
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		return err
	}
	scraper.ApplyPipelineMetrics(result, p.GetMetrics())

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		return err
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(os.Stdout, result, time.Since(startTime), outputTarget(cfg))
	return nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func outputTarget(cfg *config.Config) string {
	if cfg.OutputFormat == config.FormatMongo {
		return fmt.Sprintf("mongo %s.%s", cfg.MongoDatabase, cfg.MongoCollection)
	}
	if cfg.OutputFormat == config.FormatDual {
		return cfg.OutputFile + ", " + jsonPathFor(cfg.OutputFile)
	}
	return cfg.OutputFile
}
