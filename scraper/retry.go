package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-crawl-books/config"
)

// retryManager re-issues failed requests with capped exponential backoff.
// Pending retries are tracked so the crawl does not finish while one is
// still waiting on its timer.
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	idle         *sync.Cond
	attempts     map[string]int
	timers       map[string]*time.Timer
	generation   map[string]int
	pending      int
	totalRetries int
	stopped      bool
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	rm := &retryManager{
		cfg:        cfg,
		attempts:   make(map[string]int),
		timers:     make(map[string]*time.Timer),
		generation: make(map[string]int),
		metrics:    metrics,
		ctx:        context.Background(),
	}
	rm.idle = sync.NewCond(&rm.mu)
	return rm
}

// Schedule arranges for retry to run after the backoff for url. It reports
// false once url has used up its attempts or the manager is stopped.
func (rm *retryManager) Schedule(url string, retry func() error) bool {
	if rm.cfg.MaxRetries == 0 {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped || rm.ctx.Err() != nil {
		return false
	}

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		return false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	rm.metrics.IncRetries()

	delay := rm.backoff(attempt)
	if timer, ok := rm.timers[url]; ok && timer.Stop() {
		rm.pending--
	}
	rm.generation[url]++
	gen := rm.generation[url]
	rm.pending++
	rm.timers[url] = time.AfterFunc(delay, func() {
		rm.fireRetry(url, gen, retry)
	})
	slog.Debug("retry scheduled",
		slog.String("url", url),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// fireRetry runs one scheduled retry. The pending count drops only after
// retry has handed the request to the collector.
func (rm *retryManager) fireRetry(url string, gen int, retry func() error) {
	rm.mu.Lock()
	stopped := rm.stopped
	ctx := rm.ctx
	rm.mu.Unlock()

	if !stopped && ctx.Err() == nil {
		if err := retry(); err != nil {
			slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
		}
	}

	rm.mu.Lock()
	if rm.generation[url] == gen {
		delete(rm.timers, url)
	}
	rm.pending--
	if rm.pending <= 0 {
		rm.idle.Broadcast()
	}
	rm.mu.Unlock()
}

// WaitPending blocks until no retry is pending. It reports whether there
// was anything to wait for, in which case new requests may be in flight.
func (rm *retryManager) WaitPending() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.pending <= 0 {
		return false
	}
	for rm.pending > 0 {
		rm.idle.Wait()
	}
	return true
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for url, timer := range rm.timers {
		if timer.Stop() {
			rm.pending--
		}
		delete(rm.timers, url)
	}
	if rm.pending <= 0 {
		rm.idle.Broadcast()
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
