package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestDiscoverer() *Discoverer {
	return NewDiscoverer(5*time.Second, "aidar-test/1.0")
}

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"https://example.com", "https://example.com"},
		{"http://example.com/blog/post", "http://example.com"},
		{"  example.com ", "https://example.com"},
	}
	for _, c := range cases {
		got, err := NormalizeDomain(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := NormalizeDomain("")
	require.Error(t, err)
}

const simpleSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/posts/one</loc></url>
  <url><loc>https://example.com/posts/two</loc></url>
  <url><loc>https://example.com/posts/one</loc></url>
</urlset>`

func TestDiscover_Sitemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			_, _ = w.Write([]byte(simpleSitemap))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	urls, err := newTestDiscoverer().Discover(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	// Deduplicated, order preserved.
	assert.Equal(t, []string{
		"https://example.com/posts/one",
		"https://example.com/posts/two",
	}, urls)
}

func TestDiscover_SitemapIndexRecursion(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
				<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
					<sitemap><loc>` + srv.URL + `/sitemap-posts.xml</loc></sitemap>
					<sitemap><loc>` + srv.URL + `/sitemap-pages.xml</loc></sitemap>
				</sitemapindex>`))
		case "/sitemap-posts.xml":
			_, _ = w.Write([]byte(`<urlset><url><loc>https://example.com/p/1</loc></url></urlset>`))
		case "/sitemap-pages.xml":
			_, _ = w.Write([]byte(`<urlset><url><loc>https://example.com/about</loc></url></urlset>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	urls, err := newTestDiscoverer().Discover(context.Background(), srv.URL, Options{Source: SourceSitemap})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/1", "https://example.com/about"}, urls)
}

func TestDiscover_FallsBackToRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed" {
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
				<rss version="2.0"><channel>
					<item><link>https://example.com/articles/a</link></item>
					<item><link>https://example.com/articles/b</link></item>
					<item><link>https://example.com/feed.xml</link></item>
				</channel></rss>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	urls, err := newTestDiscoverer().Discover(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	// Feed links to feeds are dropped.
	assert.Equal(t, []string{
		"https://example.com/articles/a",
		"https://example.com/articles/b",
	}, urls)
}

func TestDiscover_AtomFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/atom.xml" {
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
				<feed xmlns="http://www.w3.org/2005/Atom">
					<entry>
						<link rel="self" href="https://example.com/atom.xml"/>
						<link rel="alternate" href="https://example.com/entries/1"/>
					</entry>
				</feed>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	urls, err := newTestDiscoverer().Discover(context.Background(), srv.URL, Options{Source: SourceRSS})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/entries/1"}, urls)
}

func TestDiscover_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			_, _ = w.Write([]byte(simpleSitemap))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	urls, err := newTestDiscoverer().Discover(context.Background(), srv.URL, Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/posts/one"}, urls)
}

func TestDiscover_NothingFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestDiscoverer().Discover(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URLs found")
}
