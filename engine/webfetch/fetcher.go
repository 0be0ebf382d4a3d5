// Package webfetch turns knowledge-source locators into clean text.
// Failures are absorbed: a locator that cannot be fetched, or whose content
// fails the quality gate, yields nil plus a warning, never an error on the
// query path.
package webfetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/pkg/fn"
	"github.com/InfraSageAI/infrasage-mvp/pkg/metrics"
)

// TruncationMarker is appended when fetched content is cut at the length cap.
const TruncationMarker = "...\n[Content truncated - see full documentation at source URL]"

// Options control fetch behavior. Zero values take the defaults below.
type Options struct {
	Timeout          time.Duration
	MaxContentLength int
	MinContentLength int
	CacheTTL         time.Duration
	FetchInterval    time.Duration
	UserAgent        string
	ExcludePatterns  []string
}

// DefaultOptions returns the settings tuned for Red Hat documentation pages.
func DefaultOptions() Options {
	return Options{
		Timeout:          15 * time.Second,
		MaxContentLength: 12000,
		MinContentLength: 100,
		CacheTTL:         2 * time.Hour,
		FetchInterval:    500 * time.Millisecond,
		UserAgent:        "infrasage/1.0 (Red Hat documentation assistant)",
		ExcludePatterns: []string{
			"advertisement", "cookie policy", "privacy policy",
			"subscribe", "newsletter", "login required",
		},
	}
}

// Fetcher retrieves and cleans external documentation, with a TTL cache in
// front of the network and pacing between consecutive fetches.
type Fetcher struct {
	opts    Options
	client  *http.Client
	cache   *docCache
	limiter *rate.Limiter
	runner  *CommandRunner
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. runner may be nil; command locators are then
// skipped with a warning.
func NewFetcher(opts Options, runner *CommandRunner, logger *slog.Logger) *Fetcher {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = def.MaxContentLength
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = def.MinContentLength
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = def.FetchInterval
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.ExcludePatterns == nil {
		opts.ExcludePatterns = def.ExcludePatterns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		cache:   newDocCache(opts.CacheTTL),
		limiter: rate.NewLimiter(rate.Every(opts.FetchInterval), 1),
		runner:  runner,
		logger:  logger,
	}
}

// Fetch resolves one locator to a document, or nil when the source is
// unreachable or its content fails the quality gate. Cache hits bypass the
// network and the rate limiter entirely.
func (f *Fetcher) Fetch(ctx context.Context, loc domain.Locator) *domain.WebDocument {
	if doc, ok := f.cache.get(loc.Value); ok {
		metrics.FetchCacheHits.Inc()
		return &doc
	}
	metrics.FetchCacheMisses.Inc()

	var doc *domain.WebDocument
	switch loc.Kind {
	case domain.LocatorCommand:
		doc = f.fetchCommand(ctx, loc)
	default:
		doc = f.fetchURL(ctx, loc)
	}
	if doc == nil {
		return nil
	}
	f.cache.put(loc.Value, *doc)
	return doc
}

// fetchWorkers bounds concurrent locator resolution; the rate limiter still
// paces the actual network calls.
const fetchWorkers = 4

// FetchAll resolves locators concurrently and returns the documents that
// survived, in locator order. Each failure is isolated: one slow or
// unreachable source never aborts its siblings.
func (f *Fetcher) FetchAll(ctx context.Context, locators []domain.Locator) []domain.WebDocument {
	results := fn.ParMap(locators, fetchWorkers, func(loc domain.Locator) *domain.WebDocument {
		if ctx.Err() != nil {
			return nil
		}
		return f.Fetch(ctx, loc)
	})

	return fn.FilterMap(results, func(doc *domain.WebDocument) (domain.WebDocument, bool) {
		if doc == nil {
			return domain.WebDocument{}, false
		}
		return *doc, true
	})
}

// ClearCache drops all cached documents.
func (f *Fetcher) ClearCache() {
	f.cache.clear()
}

func (f *Fetcher) fetchURL(ctx context.Context, loc domain.Locator) *domain.WebDocument {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.Value, nil)
	if err != nil {
		f.logger.Warn("webfetch: bad locator", "url", loc.Value, "error", err)
		metrics.FetchFailures.WithLabelValues("bad_locator").Inc()
		return nil
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("webfetch: request failed", "url", loc.Value, "error", err)
		metrics.FetchFailures.WithLabelValues("network").Inc()
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("webfetch: unexpected status", "url", loc.Value, "status", resp.StatusCode)
		metrics.FetchFailures.WithLabelValues("status").Inc()
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Warn("webfetch: read body", "url", loc.Value, "error", err)
		metrics.FetchFailures.WithLabelValues("network").Inc()
		return nil
	}

	raw := string(body)
	text := cleanHTML(raw)

	if len(text) < f.opts.MinContentLength {
		f.logger.Debug("webfetch: content too short", "url", loc.Value, "length", len(text))
		metrics.FetchFailures.WithLabelValues("quality").Inc()
		return nil
	}
	lower := strings.ToLower(text)
	for _, pat := range f.opts.ExcludePatterns {
		if strings.Contains(lower, pat) {
			f.logger.Debug("webfetch: excluded by pattern", "url", loc.Value, "pattern", pat)
			metrics.FetchFailures.WithLabelValues("quality").Inc()
			return nil
		}
	}

	if len(text) > f.opts.MaxContentLength {
		text = clampToRune(text, f.opts.MaxContentLength) + TruncationMarker
	}

	title := extractTitle(raw)
	doc := &domain.WebDocument{
		URL:       loc.Value,
		Title:     title,
		Content:   text,
		DocType:   classifyDocType(loc.Value, title),
		FetchedAt: time.Now().UTC(),
	}
	f.logger.Info("webfetch: fetched", "url", loc.Value, "chars", len(text))
	return doc
}

func (f *Fetcher) fetchCommand(ctx context.Context, loc domain.Locator) *domain.WebDocument {
	if f.runner == nil {
		f.logger.Warn("webfetch: no command runner configured", "command", loc.Value)
		metrics.FetchFailures.WithLabelValues("command").Inc()
		return nil
	}
	doc, err := f.runner.Run(ctx, loc)
	if err != nil {
		f.logger.Warn("webfetch: command failed", "command", loc.Value, "error", err)
		metrics.FetchFailures.WithLabelValues("command").Inc()
		return nil
	}
	return doc
}
