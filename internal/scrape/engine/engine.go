// Package engine implements the Scrape Engine (§4.8): it orchestrates URL
// validation, robots compliance, rate limiting, the fetch, block detection,
// and the extraction waterfall around a single URL.
package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/scrape/blockdetect"
	"github.com/pricewatch/pricewatch/internal/scrape/ratelimit"
	"github.com/pricewatch/pricewatch/internal/scrape/retry"
	"github.com/pricewatch/pricewatch/internal/scrape/robots"
	"github.com/pricewatch/pricewatch/internal/scrape/strategies"
	"github.com/pricewatch/pricewatch/internal/scrape/useragent"
)

var domainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "169.254.0.0/16",
	"::1/128", "fc00::/7", "fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// Options configure a single Scrape call.
type Options struct {
	ValidateSSRF bool
	UseCache     bool
	SkipExtract  bool // bare-fetch fast path for healing's regeneration step (§9 open question)
}

// Result is the outcome of one Scrape call.
type Result struct {
	Snapshot       *domain.ProductSnapshot
	Success        bool
	HTML           string
	StatusCode     int
	ResponseTimeMs int64
	Err            error
}

// Config holds the Scrape Engine's tunables, sourced from config.EngineConfig.
type Config struct {
	RequestTimeout         time.Duration
	OperationTimeout       time.Duration
	MaxConcurrentBrowsers  int
	PageLoadDelay          time.Duration
	UserAgent              string
}

// Engine orchestrates a single URL fetch through preflight, fetch, and
// post-fetch stages.
type Engine struct {
	cfg      Config
	robots   *robots.Cache
	limiter  *ratelimit.Limiter
	uaPool   *useragent.Pool
	stores   domain.StoreRegistry
	llm      strategies.LLMClient
	client   *http.Client
	browsers chan struct{}
}

// New constructs an Engine.
func New(cfg Config, robotsCache *robots.Cache, limiter *ratelimit.Limiter, uaPool *useragent.Pool, stores domain.StoreRegistry, llm strategies.LLMClient) *Engine {
	if cfg.MaxConcurrentBrowsers <= 0 {
		cfg.MaxConcurrentBrowsers = 3
	}
	return &Engine{
		cfg:      cfg,
		robots:   robotsCache,
		limiter:  limiter,
		uaPool:   uaPool,
		stores:   stores,
		llm:      llm,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		browsers: make(chan struct{}, cfg.MaxConcurrentBrowsers),
	}
}

// Scrape runs the full preflight -> fetch -> post-fetch pipeline for url,
// wrapped in the retry engine.
func (e *Engine) Scrape(ctx context.Context, rawURL string, opts Options) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	u, err := e.preflight(ctx, rawURL, opts)
	if err != nil {
		return Result{Success: false, Err: err}
	}

	var final Result
	_ = retry.Do(ctx, func(ctx context.Context) error {
		final = e.fetchAndExtract(ctx, u, opts)
		if final.Err != nil {
			return final.Err
		}
		return nil
	})

	host := u.Hostname()
	if final.Err != nil {
		e.uaPool.ReportFailure(host)
	} else {
		e.uaPool.ReportSuccess(host)
		if e.stores != nil {
			_ = e.stores.RecordSuccess(ctx, host, time.Now())
		}
	}

	return final
}

// preflight runs the ordered checks of §4.8 step 1-5: syntactic validation,
// SSRF guard, robots check, rate-limit configuration, and rate-limit
// acquisition.
func (e *Engine) preflight(ctx context.Context, rawURL string, opts Options) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewScrapeError(domain.ErrKindInvalidURL, "malformed url")
	}
	u.Fragment = ""

	host := u.Hostname()
	if !domainRe.MatchString(host) {
		return nil, domain.NewScrapeError(domain.ErrKindInvalidURL, "host does not match domain grammar")
	}

	if opts.ValidateSSRF {
		if err := checkNotPrivate(ctx, host); err != nil {
			return nil, err
		}
	}

	if e.robots != nil {
		res, err := e.robots.Check(ctx, u.String())
		if err != nil {
			return nil, domain.WrapScrapeError(domain.ErrKindRobotsBlocked, err)
		}
		if !res.Allowed {
			return nil, domain.NewScrapeError(domain.ErrKindRobotsBlocked, res.Reason)
		}
	}

	if e.stores != nil {
		if store, err := e.stores.Lookup(ctx, host); err == nil && store.RateLimitRPM > 0 {
			e.limiter.SetHostCap(host, store.RateLimitRPM)
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx, host); err != nil {
			return nil, err
		}
	}

	return u, nil
}

func checkNotPrivate(ctx context.Context, host string) error {
	if ip := net.ParseIP(host); ip != nil {
		return classifyIP(ip)
	}
	resolver := net.DefaultResolver
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return domain.WrapScrapeError(domain.ErrKindNetwork, err)
	}
	for _, a := range addrs {
		if err := classifyIP(a.IP); err != nil {
			return err
		}
	}
	return nil
}

func classifyIP(ip net.IP) error {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return domain.NewScrapeError(domain.ErrKindPrivateIP, "resolved address is private or internal")
		}
	}
	return nil
}

// fetchAndExtract performs the browser-semaphore-gated fetch and, unless
// opts.SkipExtract is set, the post-fetch block detection and extraction
// waterfall.
func (e *Engine) fetchAndExtract(ctx context.Context, u *url.URL, opts Options) Result {
	select {
	case e.browsers <- struct{}{}:
		defer func() { <-e.browsers }()
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}

	if e.cfg.PageLoadDelay > 0 {
		select {
		case <-time.After(e.cfg.PageLoadDelay):
		case <-ctx.Done():
			return Result{Err: ctx.Err()}
		}
	}

	start := time.Now()
	html, status, headers, err := e.fetch(ctx, u, e.uaPool.HeadersFor(u.Hostname()))
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Result{Err: domain.WrapScrapeError(domain.ErrKindNetwork, err), ResponseTimeMs: elapsed, StatusCode: status}
	}

	verdict := blockdetect.Detect(html, status, headers)
	if verdict.IsBlocked {
		kind := blockKindFor(verdict.BlockType)
		if kind == domain.ErrKindBlockedEvasive {
			e.uaPool.Rotate(u.Hostname())
		}
		return Result{
			HTML: html, StatusCode: status, ResponseTimeMs: elapsed,
			Err: domain.NewScrapeError(kind, string(verdict.BlockType)),
		}
	}

	if opts.SkipExtract {
		return Result{HTML: html, StatusCode: status, ResponseTimeMs: elapsed, Success: true}
	}

	var selectors domain.SelectorSet
	if e.stores != nil {
		selectors, _ = e.stores.SelectorsFor(ctx, u.Hostname())
	}

	snap := strategies.Extract(ctx, html, selectors, e.llm)
	if snap == nil || !snap.Complete() {
		return Result{
			HTML: html, StatusCode: status, ResponseTimeMs: elapsed,
			Err: domain.NewScrapeError(domain.ErrKindParseFailure, "extraction waterfall produced no complete snapshot"),
		}
	}

	return Result{Snapshot: snap, Success: true, HTML: html, StatusCode: status, ResponseTimeMs: elapsed}
}

// blockKindFor translates a block-detection verdict into the retry engine's
// error taxonomy via blockdetect's per-type evasion policy (§4.6): a terminal
// policy (CAPTCHA, login wall, geo block, age gate) gives up immediately
// instead of burning the blocked-kind retry budget, and a rotate-UA policy
// (bot detection, access denied) gets its own shorter evasive schedule.
func blockKindFor(t blockdetect.BlockType) domain.ErrorKind {
	if t == blockdetect.NotFound {
		return domain.ErrKindNotFound
	}
	policy := blockdetect.PolicyFor(t)
	switch {
	case policy.Terminal:
		return domain.ErrKindBlockedTerminal
	case policy.RotateUA:
		return domain.ErrKindBlockedEvasive
	default:
		return domain.ErrKindBlocked
	}
}

func (e *Engine) fetch(ctx context.Context, u *url.URL, headers map[string]string) (html string, status int, respHeaders map[string]string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, nil, fmt.Errorf("engine: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", resp.StatusCode, nil, err
	}

	respHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return string(body), resp.StatusCode, respHeaders, nil
}
