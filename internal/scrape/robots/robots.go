// Package robots implements the per-origin robots.txt cache (§4.4). No pack
// repo imports a dedicated robots.txt parser, so the directive grammar is
// hand-rolled against the plain User-agent/Disallow/Allow/Crawl-delay
// grammar (see DESIGN.md).
package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	fetchBudget = 10 * time.Second
	cacheTTL    = time.Hour
)

// Result is the outcome of a robots.txt check for a single URL.
type Result struct {
	Allowed    bool
	CrawlDelay time.Duration
	Reason     string
}

type entry struct {
	matcher    *matcher
	crawlDelay time.Duration
	fetchedAt  time.Time
}

// Cache fetches, parses, and caches robots.txt per origin, keyed by the
// scraper's user-agent family. Concurrent requests to the same origin
// single-flight onto one in-flight fetch.
type Cache struct {
	userAgent string
	client    *http.Client

	mu      sync.Mutex
	entries map[string]entry

	group singleflight.Group
}

// New creates a Cache. userAgent identifies the scraper's UA family for
// directive matching (e.g. "pricewatchbot").
func New(userAgent string) *Cache {
	return &Cache{
		userAgent: userAgent,
		client:    &http.Client{Timeout: fetchBudget},
		entries:   make(map[string]entry),
	}
}

// Check reports whether the given URL may be fetched under the origin's
// robots.txt, fetching and caching it on first access. On any fetch
// failure, it fails open (allowed=true) and does not cache the result, so
// the next request re-attempts the fetch.
func (c *Cache) Check(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{Allowed: true, Reason: "invalid url, failing open"}, nil
	}
	origin := u.Scheme + "://" + u.Host

	c.mu.Lock()
	e, ok := c.entries[origin]
	c.mu.Unlock()

	if !ok || time.Since(e.fetchedAt) > cacheTTL {
		v, err, _ := c.group.Do(origin, func() (any, error) {
			return c.fetch(ctx, origin)
		})
		if err != nil {
			// Fail-open: treat as allowed, do not cache, re-attempt next time.
			return Result{Allowed: true, Reason: "robots fetch failed, failing open"}, nil
		}
		e = v.(entry)
		c.mu.Lock()
		c.entries[origin] = e
		c.mu.Unlock()
	}

	allowed := e.matcher.allowed(u.Path)
	reason := ""
	if !allowed {
		reason = "disallowed by robots.txt"
	}
	return Result{Allowed: allowed, CrawlDelay: e.crawlDelay, Reason: reason}, nil
}

func (c *Cache) fetch(ctx context.Context, origin string) (any, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// No robots.txt present: allow everything, but still cache the
		// empty matcher for the TTL to avoid refetching every request.
		return entry{matcher: newMatcher(c.userAgent, nil), fetchedAt: time.Now()}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(body), "\n")
	m := newMatcher(c.userAgent, lines)
	return entry{matcher: m, crawlDelay: m.crawlDelay, fetchedAt: time.Now()}, nil
}

// matcher holds the parsed allow/disallow rule set applicable to one
// user-agent family.
type matcher struct {
	disallow   []string
	allow      []string
	crawlDelay time.Duration
}

// newMatcher parses robots.txt lines, keeping only the rule group that
// applies to userAgent (falling back to "*" if no specific group matches).
func newMatcher(userAgent string, lines []string) *matcher {
	m := &matcher{}

	var currentGroupApplies bool
	var sawSpecific bool
	var wildcardDisallow, wildcardAllow []string
	var wildcardDelay time.Duration

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := splitDirective(line)
		if !ok {
			continue
		}

		switch strings.ToLower(key) {
		case "user-agent":
			ua := strings.ToLower(val)
			if ua == "*" {
				currentGroupApplies = false
			} else if strings.Contains(strings.ToLower(userAgent), ua) || strings.Contains(ua, strings.ToLower(userAgent)) {
				currentGroupApplies = true
				sawSpecific = true
			} else {
				currentGroupApplies = false
			}
		case "disallow":
			if val == "" {
				continue
			}
			if currentGroupApplies {
				m.disallow = append(m.disallow, val)
			} else if !sawSpecific {
				wildcardDisallow = append(wildcardDisallow, val)
			}
		case "allow":
			if val == "" {
				continue
			}
			if currentGroupApplies {
				m.allow = append(m.allow, val)
			} else if !sawSpecific {
				wildcardAllow = append(wildcardAllow, val)
			}
		case "crawl-delay":
			if secs, err := strconv.ParseFloat(val, 64); err == nil {
				d := time.Duration(secs * float64(time.Second))
				if currentGroupApplies {
					m.crawlDelay = d
				} else if !sawSpecific {
					wildcardDelay = d
				}
			}
		}
	}

	if !sawSpecific {
		m.disallow = wildcardDisallow
		m.allow = wildcardAllow
		m.crawlDelay = wildcardDelay
	}

	return m
}

func splitDirective(line string) (key, val string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// allowed applies the longest-match-wins rule between disallow and allow
// prefixes, defaulting to allowed when nothing matches.
func (m *matcher) allowed(path string) bool {
	bestAllow, bestDisallow := -1, -1
	for _, p := range m.allow {
		if strings.HasPrefix(path, p) && len(p) > bestAllow {
			bestAllow = len(p)
		}
	}
	for _, p := range m.disallow {
		if strings.HasPrefix(path, p) && len(p) > bestDisallow {
			bestDisallow = len(p)
		}
	}
	if bestDisallow < 0 {
		return true
	}
	return bestAllow >= bestDisallow
}
