// Package scraper walks the paginated catalog, enriches every item with its
// detail page, and accumulates the results in discovery order.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/WalterDeAlmeidaLira/TechChallenge/config"
	"github.com/WalterDeAlmeidaLira/TechChallenge/models"
	"github.com/WalterDeAlmeidaLira/TechChallenge/parser"
)

// Entry is one enriched item tagged with its discovery position. The dataset
// builder orders entries by (Page, Pos) before assigning ids.
type Entry struct {
	Page int
	Pos  int
	Book models.Book
}

// Result is the outcome of a crawl run: the accumulated entries in discovery
// order plus the run report. An aborted run still carries everything
// accumulated before the failure.
type Result struct {
	Entries []Entry
	Report  *models.CrawlReport
}

// crawlState models pagination: the crawler is at a page, finished normally,
// or aborted because a list page was unreachable.
type crawlState int

const (
	stateAtPage crawlState = iota
	stateDone
	stateAborted
)

// Crawler drives the pagination loop. List pages are fetched one at a time
// (the next link is only known after parsing the current page); detail pages
// fan out through a bounded async collector.
type Crawler struct {
	cfg     *config.Config
	base    *url.URL
	list    *colly.Collector
	detail  *colly.Collector
	retry   *retrier
	Metrics *Metrics

	requestCount int64

	// capture slots for the synchronous list collector; only touched by the
	// goroutine driving Run.
	page    *parser.ListPage
	pageErr error

	mu           sync.Mutex
	entries      []Entry
	skips        map[string]int
	errorsByType map[string]int
	failedURLs   []string
}

type pendingItem struct {
	page int
	pos  int
	item parser.ListItem
}

// NewCrawler builds a crawler configured from cfg.
func NewCrawler(cfg *config.Config) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	list := colly.NewCollector(
		colly.AllowedDomains(base.Host),
		colly.UserAgent(cfg.UserAgent),
	)
	list.SetRequestTimeout(cfg.Timeout)
	list.IgnoreRobotsTxt = true
	list.AllowURLRevisit = true // retries revisit the same page
	list.WithTransport(transport)

	detail := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(base.Host),
		colly.UserAgent(cfg.UserAgent),
	)
	detail.SetRequestTimeout(cfg.Timeout)
	detail.IgnoreRobotsTxt = true
	detail.WithTransport(transport)

	if err := detail.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	c := &Crawler{
		cfg:          cfg,
		base:         base,
		list:         list,
		detail:       detail,
		Metrics:      NewMetrics(),
		skips:        make(map[string]int),
		errorsByType: make(map[string]int),
	}
	c.retry = newRetrier(cfg, c.Metrics)
	c.configureHandlers()
	return c, nil
}

// WithTransport overrides the HTTP transport on both collectors. Used by
// tests to inject a mock round tripper.
func (c *Crawler) WithTransport(rt http.RoundTripper) {
	c.list.WithTransport(rt)
	c.detail.WithTransport(rt)
}

// Run walks the catalog starting at page 1 and returns the accumulated
// entries in discovery order. A list-page failure aborts the run; item-level
// failures are counted and skipped.
func (c *Crawler) Run(ctx context.Context) *Result {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	report := &models.CrawlReport{StartTime: start}

	state := stateAtPage
	current := c.startURL()

	for state == stateAtPage {
		if err := ctx.Err(); err != nil {
			state = stateAborted
			report.AbortReason = fmt.Sprintf("crawl cancelled at %s: %v", current, err)
			break
		}

		page, err := c.fetchList(ctx, current)
		if err != nil {
			// Without the list page there is no way to discover the
			// remaining items or pages.
			state = stateAborted
			report.AbortReason = fmt.Sprintf("list page %s: %v", current, err)
			c.recordFailedURL(current)
			break
		}

		report.PagesCrawled++
		c.Metrics.IncPages()
		report.ItemsFound += len(page.Items) + len(page.Skipped)

		for _, skip := range page.Skipped {
			c.recordSkip("extract")
			c.recordError(skip)
			slog.Warn("skipping item", slog.String("page", current), slog.Any("error", skip))
		}

		for pos, item := range page.Items {
			c.enqueueDetail(report.PagesCrawled, pos, item)
		}

		switch {
		case len(page.Items) == 0:
			// An empty list page ends pagination without failing the run.
			state = stateDone
		case page.NextURL == "":
			state = stateDone
		case report.PagesCrawled >= c.cfg.MaxPages:
			state = stateDone
		default:
			current = page.NextURL
		}
	}

	c.detail.Wait()

	c.mu.Lock()
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	report.SkipsByKind = copyCounts(c.skips)
	report.ErrorsByType = copyCounts(c.errorsByType)
	report.FailedURLs = append([]string(nil), c.failedURLs...)
	c.mu.Unlock()

	// Detail fetches complete out of order; restore discovery order before
	// ids get assigned downstream.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Page != entries[j].Page {
			return entries[i].Page < entries[j].Page
		}
		return entries[i].Pos < entries[j].Pos
	})

	report.EndTime = time.Now()
	report.ItemsKept = len(entries)
	report.ItemsSkipped = report.ItemsFound - report.ItemsKept
	report.RetryCount = c.retry.TotalRetries()
	report.RequestCount = int(atomic.LoadInt64(&c.requestCount))
	report.Aborted = state == stateAborted

	return &Result{Entries: entries, Report: report}
}

func (c *Crawler) startURL() string {
	ref, _ := url.Parse("catalogue/page-1.html")
	return c.base.ResolveReference(ref).String()
}

// fetchList retrieves one list page, retrying with backoff before giving up.
func (c *Crawler) fetchList(ctx context.Context, pageURL string) (*parser.ListPage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.page, c.pageErr = nil, nil
		visitErr := c.list.Visit(pageURL)

		if c.pageErr == nil && c.page != nil {
			return c.page, nil
		}

		fetchErr := c.pageErr
		if fetchErr == nil {
			fetchErr = classify(visitErr, 0)
		}
		if fetchErr == nil {
			fetchErr = fmt.Errorf("no response from %s", pageURL)
		}

		delay, ok := c.retry.Next(pageURL)
		if !ok {
			return nil, fetchErr
		}
		slog.Warn("list page fetch failed, retrying",
			slog.String("url", pageURL),
			slog.Duration("backoff", delay),
			slog.Any("error", fetchErr),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, fetchErr
		}
	}
}

func (c *Crawler) enqueueDetail(page, pos int, item parser.ListItem) {
	cctx := colly.NewContext()
	cctx.Put("pending", &pendingItem{page: page, pos: pos, item: item})
	if err := c.detail.Request("GET", item.URL, nil, cctx, nil); err != nil {
		c.recordSkip("detail_fetch")
		c.recordError(classify(err, 0))
		c.recordFailedURL(item.URL)
		slog.Warn("detail request rejected", slog.String("url", item.URL), slog.Any("error", err))
	}
}

func (c *Crawler) configureHandlers() {
	onRequest := func(phase string) colly.RequestCallback {
		return func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			atomic.AddInt64(&c.requestCount, 1)
			c.Metrics.IncRequest(phase)
		}
	}
	c.list.OnRequest(onRequest("list"))
	c.detail.OnRequest(onRequest("detail"))

	c.list.OnResponse(func(r *colly.Response) {
		c.observe(r)
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			c.pageErr = parser.ParseError{Field: "document", Err: err}
			c.recordError(c.pageErr)
			return
		}
		c.page = parser.ParseListPage(doc, r.Request.URL)
	})

	c.list.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		classified := classify(err, status)
		c.recordError(classified)
		c.pageErr = classified
	})

	c.detail.OnResponse(func(r *colly.Response) {
		c.observe(r)
		pending, ok := r.Ctx.GetAny("pending").(*pendingItem)
		if !ok {
			return
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			c.skipItem(pending, "detail_parse", parser.ParseError{Field: "document", Err: err})
			return
		}
		detail, err := parser.ParseDetailPage(doc, r.Request.URL)
		if err != nil {
			c.skipItem(pending, "detail_parse", err)
			return
		}

		book := models.Book{
			Title:        pending.item.Title,
			Price:        pending.item.Price,
			Rating:       pending.item.Rating,
			Availability: detail.Availability,
			Category:     detail.Category,
			ImageURL:     detail.ImageURL,
			URL:          pending.item.URL,
		}

		c.mu.Lock()
		c.entries = append(c.entries, Entry{Page: pending.page, Pos: pending.pos, Book: book})
		c.mu.Unlock()
		c.Metrics.IncItems()
	})

	c.detail.OnError(func(r *colly.Response, err error) {
		status := 0
		requestURL := ""
		if r != nil {
			status = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				requestURL = r.Request.URL.String()
			}
		}
		classified := classify(err, status)
		c.recordFailedURL(requestURL)

		if r != nil && r.Request != nil && r.Request.Ctx != nil {
			if pending, ok := r.Request.Ctx.GetAny("pending").(*pendingItem); ok {
				c.skipItem(pending, "detail_fetch", classified)
				return
			}
		}
		c.recordError(classified)
	})
}

func (c *Crawler) observe(r *colly.Response) {
	if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
		c.Metrics.ObserveDuration(time.Since(start))
	}
}

// skipItem drops a single item without touching the rest of the run.
func (c *Crawler) skipItem(pending *pendingItem, reason string, err error) {
	c.recordSkip(reason)
	c.recordError(err)
	slog.Warn("dropping item",
		slog.String("title", pending.item.Title),
		slog.String("url", pending.item.URL),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
}

func (c *Crawler) recordSkip(reason string) {
	c.mu.Lock()
	c.skips[reason]++
	c.mu.Unlock()
	c.Metrics.IncSkipped(reason)
}

func (c *Crawler) recordError(err error) {
	label := errorTypeLabel(err)
	c.mu.Lock()
	c.errorsByType[label]++
	c.mu.Unlock()
	c.Metrics.IncError(label)
}

func (c *Crawler) recordFailedURL(u string) {
	if u == "" {
		return
	}
	c.mu.Lock()
	c.failedURLs = append(c.failedURLs, u)
	c.mu.Unlock()
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
