package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/scrape/blockdetect"
	"github.com/pricewatch/pricewatch/internal/scrape/ratelimit"
	"github.com/pricewatch/pricewatch/internal/scrape/useragent"
)

type noopLimiterBackend struct{}

func (noopLimiterBackend) Acquire(ctx context.Context, key string, limit int, window time.Duration) error {
	return nil
}

func (noopLimiterBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func newTestEngine() *Engine {
	return New(Config{RequestTimeout: 5 * time.Second, OperationTimeout: 5 * time.Second},
		nil, ratelimit.New(noopLimiterBackend{}, 100, 100), useragent.New(nil), nil, nil)
}

func TestPreflightRejectsMalformedURL(t *testing.T) {
	e := newTestEngine()
	_, err := e.preflight(context.Background(), "not a url", Options{})
	se, ok := domain.AsScrapeError(err)
	if !ok || se.Kind != domain.ErrKindInvalidURL {
		t.Fatalf("err = %v, want ErrKindInvalidURL", err)
	}
}

func TestPreflightRejectsNonHTTPScheme(t *testing.T) {
	e := newTestEngine()
	_, err := e.preflight(context.Background(), "ftp://example.com/file", Options{})
	se, ok := domain.AsScrapeError(err)
	if !ok || se.Kind != domain.ErrKindInvalidURL {
		t.Fatalf("err = %v, want ErrKindInvalidURL for a non-http(s) scheme", err)
	}
}

func TestPreflightRejectsPrivateAddressesWhenSSRFValidationIsOn(t *testing.T) {
	e := newTestEngine()
	_, err := e.preflight(context.Background(), "http://127.0.0.1:8080/product", Options{ValidateSSRF: true})
	se, ok := domain.AsScrapeError(err)
	if !ok || se.Kind != domain.ErrKindPrivateIP {
		t.Fatalf("err = %v, want ErrKindPrivateIP", err)
	}
}

func TestPreflightAllowsPrivateAddressesWhenSSRFValidationIsOff(t *testing.T) {
	e := newTestEngine()
	u, err := e.preflight(context.Background(), "http://127.0.0.1:8080/product", Options{ValidateSSRF: false})
	if err != nil {
		t.Fatalf("preflight returned error: %v", err)
	}
	if u.Host != "127.0.0.1:8080" {
		t.Fatalf("u.Host = %q, want 127.0.0.1:8080", u.Host)
	}
}

func TestFetchAndExtractSkipExtractReturnsRawHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	e := newTestEngine()
	u, err := e.preflight(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("preflight returned error: %v", err)
	}

	result := e.fetchAndExtract(context.Background(), u, Options{SkipExtract: true})
	if !result.Success {
		t.Fatalf("expected success, got err=%v", result.Err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", result.StatusCode)
	}
	if result.HTML == "" {
		t.Fatal("expected non-empty HTML")
	}
}

func TestFetchAndExtractClassifiesNotFoundAsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	}))
	defer srv.Close()

	e := newTestEngine()
	u, err := e.preflight(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("preflight returned error: %v", err)
	}

	result := e.fetchAndExtract(context.Background(), u, Options{SkipExtract: true})
	se, ok := domain.AsScrapeError(result.Err)
	if !ok || se.Kind != domain.ErrKindNotFound {
		t.Fatalf("err = %v, want ErrKindNotFound", result.Err)
	}
}

func TestBlockKindForMapsPolicyTiers(t *testing.T) {
	cases := []struct {
		blockType blockdetect.BlockType
		want      domain.ErrorKind
	}{
		{blockdetect.NotFound, domain.ErrKindNotFound},
		{blockdetect.Captcha, domain.ErrKindBlockedTerminal},
		{blockdetect.LoginRequired, domain.ErrKindBlockedTerminal},
		{blockdetect.GeoBlocked, domain.ErrKindBlockedTerminal},
		{blockdetect.AgeGate, domain.ErrKindBlockedTerminal},
		{blockdetect.BotDetection, domain.ErrKindBlockedEvasive},
		{blockdetect.AccessDenied, domain.ErrKindBlockedEvasive},
		{blockdetect.RateLimited, domain.ErrKindBlocked},
		{blockdetect.EmptyResponse, domain.ErrKindBlocked},
		{blockdetect.Maintenance, domain.ErrKindBlocked},
	}
	for _, c := range cases {
		if got := blockKindFor(c.blockType); got != c.want {
			t.Errorf("blockKindFor(%s) = %v, want %v", c.blockType, got, c.want)
		}
	}
}

func TestFetchAndExtractClassifiesCaptchaAsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("please complete the recaptcha challenge to continue " + strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	e := newTestEngine()
	u, err := e.preflight(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("preflight returned error: %v", err)
	}

	result := e.fetchAndExtract(context.Background(), u, Options{SkipExtract: true})
	se, ok := domain.AsScrapeError(result.Err)
	if !ok || se.Kind != domain.ErrKindBlockedTerminal {
		t.Fatalf("err = %v, want ErrKindBlockedTerminal", result.Err)
	}
}

func TestFetchAndExtractRotatesUserAgentOnEvasiveBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(strings.Repeat("blocked ", 20)))
	}))
	defer srv.Close()

	e := newTestEngine()
	u, err := e.preflight(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("preflight returned error: %v", err)
	}

	before := e.uaPool.HeadersFor(u.Hostname())["User-Agent"]

	result := e.fetchAndExtract(context.Background(), u, Options{SkipExtract: true})
	se, ok := domain.AsScrapeError(result.Err)
	if !ok || se.Kind != domain.ErrKindBlockedEvasive {
		t.Fatalf("err = %v, want ErrKindBlockedEvasive", result.Err)
	}

	after := e.uaPool.HeadersFor(u.Hostname())["User-Agent"]
	if before == after {
		t.Fatal("expected user agent to rotate immediately after an evasive block verdict")
	}
}

func TestFetchAndExtractFailsWhenNoSnapshotCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>no product data here</body></html>"))
	}))
	defer srv.Close()

	e := newTestEngine()
	u, err := e.preflight(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("preflight returned error: %v", err)
	}

	result := e.fetchAndExtract(context.Background(), u, Options{})
	se, ok := domain.AsScrapeError(result.Err)
	if !ok || se.Kind != domain.ErrKindParseFailure {
		t.Fatalf("err = %v, want ErrKindParseFailure when the waterfall finds nothing", result.Err)
	}
}
