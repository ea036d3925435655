package healing

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// Completer is the LLM channel contract consumed by the regenerator
// (satisfied by *llm.Client).
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RegenerationResult is the outcome of one Selector Regenerator call (§4.15).
type RegenerationResult struct {
	Success    bool
	Selectors  domain.SelectorSet
	Confidence float64
	Notes      string
	Err        error
}

const maxHTMLSampleLen = 50_000

var productMarkerRe = regexp.MustCompile(`(?i)(price|add.to.cart|in.stock|sku|product-title)`)

// regeneratorSchema mirrors the JSON shape demanded of the LLM in §4.15.
type regeneratorSchema struct {
	Selectors struct {
		Price struct {
			CSS []string `json:"css"`
		} `json:"price"`
		Name struct {
			CSS []string `json:"css"`
		} `json:"name"`
		Availability struct {
			CSS            []string `json:"css"`
			InStockPatterns []string `json:"in_stock_patterns"`
		} `json:"availability"`
		Image struct {
			CSS []string `json:"css"`
		} `json:"image"`
		OriginalPrice struct {
			CSS []string `json:"css"`
		} `json:"original_price"`
		WaitFor string `json:"wait_for"`
		JSONLD  bool   `json:"json_ld"`
	} `json:"selectors"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes"`
}

// Regenerator proposes a fresh SelectorSet for a host from a live HTML
// sample by prompting an LLM for structured JSON (§4.15). It does not retry
// internally; the controller decides whether to try again next cycle.
type Regenerator struct {
	llm Completer
}

// NewRegenerator builds a Regenerator over an LLM channel.
func NewRegenerator(llm Completer) *Regenerator {
	return &Regenerator{llm: llm}
}

// Regenerate calls the LLM once and parses its response into a
// RegenerationResult.
func (r *Regenerator) Regenerate(ctx context.Context, html, host string, current domain.SelectorSet) RegenerationResult {
	prompt := buildPrompt(truncateHTML(html), host, current)
	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return RegenerationResult{Success: false, Err: err}
	}
	return parseRegeneration(raw)
}

func buildPrompt(html, host string, current domain.SelectorSet) string {
	currentJSON, _ := json.Marshal(current)
	return fmt.Sprintf(`You are inspecting a product page from %s to recover CSS selectors.

Current selectors (may be stale): %s

HTML sample:
%s

Respond with ONLY JSON of this exact shape:
{"selectors":{"price":{"css":[...]},"name":{"css":[...]},"availability":{"css":[...],"in_stock_patterns":[...]},"image":{"css":[...]},"original_price":{"css":[...]},"wait_for":"","json_ld":false},"confidence":0.0,"notes":""}`,
		host, string(currentJSON), html)
}

// truncateHTML cuts html to maxHTMLSampleLen, preferring a window centered on
// the first product-marker match so the truncation doesn't discard the
// price/availability region on long pages.
func truncateHTML(html string) string {
	if len(html) <= maxHTMLSampleLen {
		return html
	}
	loc := productMarkerRe.FindStringIndex(html)
	if loc == nil {
		return html[:maxHTMLSampleLen]
	}
	start := loc[0] - maxHTMLSampleLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxHTMLSampleLen
	if end > len(html) {
		end = len(html)
		start = end - maxHTMLSampleLen
		if start < 0 {
			start = 0
		}
	}
	return html[start:end]
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func parseRegeneration(raw string) RegenerationResult {
	body := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	var schema regeneratorSchema
	if err := json.Unmarshal([]byte(body), &schema); err != nil {
		return RegenerationResult{Success: false, Err: fmt.Errorf("healing: parse regenerator response: %w", err)}
	}

	selectors := domain.SelectorSet{
		Price:         domain.FieldSelectors{CSS: schema.Selectors.Price.CSS},
		Name:          domain.FieldSelectors{CSS: schema.Selectors.Name.CSS},
		Availability:  domain.FieldSelectors{CSS: schema.Selectors.Availability.CSS, Patterns: schema.Selectors.Availability.InStockPatterns},
		Image:         domain.FieldSelectors{CSS: schema.Selectors.Image.CSS},
		OriginalPrice: domain.FieldSelectors{CSS: schema.Selectors.OriginalPrice.CSS},
		WaitFor:       schema.Selectors.WaitFor,
		JSONLD:        schema.Selectors.JSONLD,
	}

	return RegenerationResult{
		Success:    true,
		Selectors:  selectors,
		Confidence: schema.Confidence,
		Notes:      schema.Notes,
	}
}
