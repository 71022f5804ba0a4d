package extract

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carteakey/aidar/internal/resilience"
)

// maxBodyBytes caps how much of a response we read. Articles north of this
// are not articles.
const maxBodyBytes = 8 << 20

// HTTPOptions configures the HTTP extractor.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// PerHostRate is the sustained request rate allowed against one host.
	// Default: 2 req/s with a burst of 4.
	PerHostRate  float64
	PerHostBurst int
	Retry        resilience.RetryConfig
}

// HTTPExtractor fetches URLs with per-host rate limiting and retries on
// transient failures, then extracts the article text from the HTML.
type HTTPExtractor struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPExtractor creates an HTTPExtractor with the given options.
func NewHTTPExtractor(opts HTTPOptions) *HTTPExtractor {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; aidar/1.0)"
	}
	if opts.PerHostRate <= 0 {
		opts.PerHostRate = 2
	}
	if opts.PerHostBurst <= 0 {
		opts.PerHostBurst = 4
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPExtractor{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Extract fetches the URL and returns the extracted article.
func (f *HTTPExtractor) Extract(ctx context.Context, target string) (*Extraction, error) {
	body, err := resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) ([]byte, error) {
		return f.fetch(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	ex, err := FromHTML(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if ex.WordCount < minExtractWords {
		return nil, &ExtractionError{
			Target: target,
			Reason: "no readable article body (JavaScript-rendered, paywalled, or empty)",
		}
	}
	return ex, nil
}

func (f *HTTPExtractor) fetch(ctx context.Context, target string) ([]byte, error) {
	if err := f.limiterFor(target).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extract: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: create request for %s", target)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		// Network errors carry their own transient classification.
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{URL: target, StatusCode: resp.StatusCode}
		if !resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, fe
		}
		te := resilience.NewTransientError(fe, resp.StatusCode)
		te.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		zap.L().Warn("transient http status",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
			zap.Duration("retry_after", te.RetryAfter),
		)
		return nil, te
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" &&
		!strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return nil, &ExtractionError{Target: target, Reason: "unsupported content type " + ct}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	return body, nil
}

func (f *HTTPExtractor) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.PerHostRate), f.opts.PerHostBurst)
		f.limiters[host] = lim
	}
	return lim
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
