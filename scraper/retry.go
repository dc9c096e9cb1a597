package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/WalterDeAlmeidaLira/TechChallenge/config"
)

// retrier tracks retry attempts per URL and computes backoff delays. The
// crawl loop is sequential, so retries are plain context-aware sleeps rather
// than timers.
type retrier struct {
	cfg     *config.Config
	metrics *Metrics

	mu           sync.Mutex
	attempts     map[string]int
	totalRetries int
}

func newRetrier(cfg *config.Config, metrics *Metrics) *retrier {
	return &retrier{
		cfg:      cfg,
		metrics:  metrics,
		attempts: make(map[string]int),
	}
}

// Next reports whether url has retry budget left and, if so, the backoff
// delay to wait before the next attempt.
func (r *retrier) Next(url string) (time.Duration, bool) {
	if r.cfg.MaxRetries == 0 {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	attempt := r.attempts[url]
	if attempt >= r.cfg.MaxRetries {
		return 0, false
	}

	attempt++
	r.attempts[url] = attempt
	r.totalRetries++
	if r.metrics != nil {
		r.metrics.IncRetries()
	}

	return r.backoff(attempt), true
}

func (r *retrier) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := r.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := r.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// TotalRetries returns the number of retries scheduled so far.
func (r *retrier) TotalRetries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalRetries
}

// sleep waits for d unless ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
