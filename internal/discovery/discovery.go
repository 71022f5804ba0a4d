// Package discovery finds article URLs for a domain via its sitemap or
// RSS/Atom feeds.
package discovery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Source selects the discovery method.
type Source string

const (
	SourceAuto    Source = "auto"
	SourceSitemap Source = "sitemap"
	SourceRSS     Source = "rss"
)

// Options controls a discovery run.
type Options struct {
	Source Source
	// Limit caps the number of returned URLs. Zero means all.
	Limit int
}

// maxFetchBytes caps sitemap/feed downloads.
const maxFetchBytes = 16 << 20

// Discoverer fetches and parses sitemaps and feeds for one site at a time.
type Discoverer struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(timeout time.Duration, userAgent string) *Discoverer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; aidar/1.0)"
	}
	return &Discoverer{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		limiter:   rate.NewLimiter(5, 5),
	}
}

// NormalizeDomain accepts "example.com" or "https://example.com/path" and
// returns the site's base URL.
func NormalizeDomain(domain string) (string, error) {
	d := strings.TrimSpace(domain)
	if d == "" {
		return "", eris.New("discovery: empty domain")
	}
	if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
		d = "https://" + d
	}
	u, err := url.Parse(d)
	if err != nil {
		return "", eris.Wrapf(err, "discovery: parse domain %s", domain)
	}
	if u.Host == "" {
		return "", eris.Errorf("discovery: no host in %s", domain)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Discover returns article URLs for the domain, deduplicated in discovery
// order. With SourceAuto the sitemap is tried first, then feeds.
func (d *Discoverer) Discover(ctx context.Context, domain string, opts Options) ([]string, error) {
	base, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if opts.Source == "" {
		opts.Source = SourceAuto
	}

	log := zap.L().With(zap.String("domain", base))

	var urls []string
	if opts.Source == SourceAuto || opts.Source == SourceSitemap {
		urls, err = d.fromSitemap(ctx, base)
		if err != nil {
			log.Warn("sitemap discovery failed", zap.Error(err))
		}
		if len(urls) > 0 {
			log.Info("discovered via sitemap", zap.Int("urls", len(urls)))
		}
	}

	if len(urls) == 0 && (opts.Source == SourceAuto || opts.Source == SourceRSS) {
		urls, err = d.fromFeeds(ctx, base)
		if err != nil {
			log.Warn("feed discovery failed", zap.Error(err))
		}
		if len(urls) > 0 {
			log.Info("discovered via feed", zap.Int("urls", len(urls)))
		}
	}

	if len(urls) == 0 {
		return nil, eris.Errorf("discovery: no URLs found for %s", base)
	}

	urls = dedupe(urls)
	if opts.Limit > 0 && len(urls) > opts.Limit {
		urls = urls[:opts.Limit]
	}
	return urls, nil
}

// fetch downloads one URL, returning nil with no error on non-200 responses
// so callers can fall through to the next candidate location.
func (d *Discoverer) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "discovery: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: fetch %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read %s", rawURL)
	}
	return body, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
