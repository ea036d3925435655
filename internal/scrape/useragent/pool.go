// Package useragent implements the round-robin user-agent pool with
// per-host failure tracking described in §4.5.
package useragent

import "sync"

// DefaultAgents mirrors the teacher's small fixed table of modern browser
// strings, extended for a general-purpose scraper.
var DefaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

const maxConsecutiveFailures = 3

type hostState struct {
	index    int
	failures []int
}

// Pool rotates over a fixed agent table, tracking per-host failure counts
// and rotating away from an agent after three consecutive failures at the
// same host.
type Pool struct {
	agents []string

	mu    sync.Mutex
	hosts map[string]*hostState
}

// New creates a Pool over the given agent table. If agents is empty,
// DefaultAgents is used.
func New(agents []string) *Pool {
	if len(agents) == 0 {
		agents = DefaultAgents
	}
	return &Pool{
		agents: agents,
		hosts:  make(map[string]*hostState),
	}
}

func (p *Pool) stateFor(host string) *hostState {
	st, ok := p.hosts[host]
	if !ok {
		st = &hostState{failures: make([]int, len(p.agents))}
		p.hosts[host] = st
	}
	return st
}

// HeadersFor returns a fresh header map for a request to host, selecting the
// host's current agent index.
func (p *Pool) HeadersFor(host string) map[string]string {
	p.mu.Lock()
	st := p.stateFor(host)
	agent := p.agents[st.index]
	p.mu.Unlock()

	return map[string]string{
		"User-Agent":      agent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-CA,en;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
	}
}

// ReportSuccess zeroes the current agent index's failure counter for host.
func (p *Pool) ReportSuccess(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stateFor(host)
	st.failures[st.index] = 0
}

// Rotate immediately advances host to the next agent index, bypassing the
// consecutive-failure threshold ReportFailure waits for. Used when block
// detection calls for an evasive retry (bot-detection/access-denied), where
// waiting for three failures on the same agent would waste the retry budget.
func (p *Pool) Rotate(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stateFor(host)
	st.index = (st.index + 1) % len(p.agents)
	st.failures[st.index] = 0
}

// ReportFailure increments the current agent index's failure counter for
// host; after maxConsecutiveFailures it rotates to the index with the
// lowest observed failure count.
func (p *Pool) ReportFailure(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stateFor(host)
	st.failures[st.index]++

	if st.failures[st.index] >= maxConsecutiveFailures {
		best := 0
		for i, f := range st.failures {
			if f < st.failures[best] {
				best = i
			}
		}
		st.index = best
	}
}
