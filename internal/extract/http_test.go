package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carteakey/aidar/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func newTestExtractor() *HTTPExtractor {
	return NewHTTPExtractor(HTTPOptions{
		Timeout:      5 * time.Second,
		PerHostRate:  1000,
		PerHostBurst: 1000,
		Retry:        testRetry(),
	})
}

const testPage = `<html><head><title>A Page</title></head><body>
<p>This paragraph carries enough plain words to clear the minimum extraction
threshold for readable article bodies in these tests, with room to spare.</p>
</body></html>`

func TestHTTPExtractor_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	ex, err := newTestExtractor().Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "A Page", ex.Title)
	assert.Contains(t, ex.Text, "minimum extraction")
	assert.GreaterOrEqual(t, ex.WordCount, minExtractWords)
	assert.Contains(t, gotUA, "aidar")
}

func TestHTTPExtractor_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	ex, err := newTestExtractor().Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "A Page", ex.Title)
}

func TestHTTPExtractor_429CarriesRetryAfter(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestExtractor().Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 3, calls) // retried to exhaustion
	assert.True(t, resilience.IsTransient(err))
}

func TestHTTPExtractor_404IsPermanent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestExtractor().Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls) // no retry on client errors

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, resilience.IsTransient(err))
}

func TestHTTPExtractor_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	_, err := newTestExtractor().Extract(context.Background(), srv.URL)
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Reason, "application/pdf")
}

func TestHTTPExtractor_TooFewWords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Too short.</p></body></html>`))
	}))
	defer srv.Close()

	_, err := newTestExtractor().Extract(context.Background(), srv.URL)
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Reason, "no readable article body")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))

	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.Greater(t, got, 5*time.Second)
	assert.LessOrEqual(t, got, 10*time.Second)
}

func TestFetchError_Message(t *testing.T) {
	fe := &FetchError{URL: "https://example.com/x", StatusCode: 502}
	assert.True(t, strings.Contains(fe.Error(), "502"))
}
