// Package scraper drives the crawl: it fetches pages with colly, hands each
// fetched page to the listing or detail handler named by its work-item tag,
// and dispatches the work items and records those handlers produce.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/aluiziolira/go-crawl-books/config"
	"github.com/aluiziolira/go-crawl-books/models"
	"github.com/aluiziolira/go-crawl-books/parser"
	"github.com/aluiziolira/go-crawl-books/pipeline"
)

// kindKey stores the work-item tag in each colly request context.
const kindKey = "kind"

// Scraper wraps the colly collector and retry logic for the catalog crawl.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	Metrics   *Metrics
	runID     string

	requestCount int64
	pageCount    int64
	detailCount  int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	hosts, err := cfg.AllowedHosts()
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(hosts...),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
		runID:        uuid.NewString(),
	}
	s.retry = newRetryManager(cfg, s.Metrics)
	return s, nil
}

// RunID identifies this crawl in persisted output.
func (s *Scraper) RunID() string {
	return s.runID
}

// Run seeds the crawl with the configured base URL as a listing page and
// blocks until every dispatched work item, including retries, has been
// handled. Records are streamed into p.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.retry.Stop()
		case <-done:
		}
	}()

	seed := models.WorkItem{URL: s.cfg.BaseURL, Kind: models.KindListing}
	if err := s.dispatch(seed); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}

	for {
		s.collector.Wait()
		if !s.retry.WaitPending() {
			break
		}
	}
	s.retry.Stop()

	result := &models.ScraperResult{
		RunID:        s.runID,
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
		DetailCount:  int(atomic.LoadInt64(&s.detailCount)),
	}

	ApplyPipelineMetrics(result, p.GetMetrics())

	return result, nil
}

// ApplyPipelineMetrics copies the sink counters into result. Call it again
// after the pipeline has been closed to pick up records still buffered when
// Run returned.
func ApplyPipelineMetrics(result *models.ScraperResult, metrics map[string]interface{}) {
	if result == nil || metrics == nil {
		return
	}
	if processed, ok := metrics["processed_books"].(int64); ok {
		result.TotalCount = int(processed)
	}
	if missing, ok := metrics["missing_fields"].(map[string]int); ok {
		result.MissingByField = missing
	}
	if validation, ok := metrics["validation_errors"].(map[string]int); ok {
		result.DuplicateCount = validation["duplicate_url"]
	}
}

// dispatch queues one work item. Each request gets its own context so the
// tag survives redirects and retries.
func (s *Scraper) dispatch(item models.WorkItem) error {
	rctx := colly.NewContext()
	rctx.Put(kindKey, item.Kind.String())
	return s.collector.Request(http.MethodGet, item.URL, nil, rctx, nil)
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			if current%50 == 0 {
				slog.Debug("crawl request progress",
					slog.Int64("requests", current),
					slog.Int64("listing_pages", atomic.LoadInt64(&s.pageCount)),
					slog.Int64("detail_pages", atomic.LoadInt64(&s.detailCount)),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			s.Metrics.IncRequest("completed")
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			url := ""
			if r != nil {
				statusCode = r.StatusCode
				if r.Request != nil && r.Request.URL != nil {
					url = r.Request.URL.String()
				}
			}
			classified := classifyError(url, err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			slog.Error("request error",
				slog.String("url", url),
				slog.String("category", category),
				slog.Any("error", err),
			)
			s.Metrics.IncError(category)

			var reqErr *RequestError
			retryable := errors.As(classified, &reqErr) && reqErr.Retryable()
			if !retryable || r == nil || r.Request == nil || !s.retry.Schedule(url, r.Request.Retry) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, url)
				s.mu.Unlock()
			}
		})

		s.collector.OnHTML("html", func(e *colly.HTMLElement) {
			kind := models.Kind(e.Request.Ctx.Get(kindKey))
			if !kind.Valid() {
				slog.Warn("page without work-item tag", slog.String("url", e.Request.URL.String()), slog.String("kind", kind.String()))
				return
			}
			if kind == models.KindListing {
				s.handleListing(ctx, e)
				return
			}
			s.handleDetail(e, p)
		})
	})
}

func (s *Scraper) handleListing(ctx context.Context, e *colly.HTMLElement) {
	page := atomic.AddInt64(&s.pageCount, 1)
	for _, item := range parser.ParseListing(e.DOM, e.Request.URL) {
		s.Metrics.IncWorkItem(item.Kind.String())
		if ctx.Err() != nil {
			return
		}
		if item.Kind == models.KindListing && s.cfg.MaxPages > 0 && page >= int64(s.cfg.MaxPages) {
			slog.Debug("page limit reached, not following next page",
				slog.Int("max_pages", s.cfg.MaxPages),
				slog.String("url", item.URL),
			)
			continue
		}
		if err := s.dispatch(item); err != nil {
			slog.Debug("work item not dispatched",
				slog.String("url", item.URL),
				slog.String("kind", item.Kind.String()),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Scraper) handleDetail(e *colly.HTMLElement, p *pipeline.Pipeline) {
	atomic.AddInt64(&s.detailCount, 1)

	book := parser.ExtractBook(e.DOM)
	book.URL = e.Request.URL.String()
	book.ScrapedAt = time.Now()

	s.Metrics.IncItems()
	for _, field := range parser.MissingFields(book) {
		s.Metrics.IncMissing(field)
	}
	if err := p.Process(book); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
		slog.Error("pipeline process error", slog.String("url", book.URL), slog.Any("error", err))
	}
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
