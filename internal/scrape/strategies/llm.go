package strategies

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// LLMClient is the narrow contract the extraction waterfall needs from the
// LLM channel (§6 "LLM channel"). Concrete implementations live under
// internal/llm.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var productMarkerRe = regexp.MustCompile(`(?i)<main|itemtype="[^"]*schema\.org/Product|data-product|class="[^"]*product|id="[^"]*product`)

const maxLLMHTMLChars = 50000

const llmExtractionPrompt = `You are extracting product data from an HTML fragment. Return strict JSON only, no markdown fences, matching:
{"name": string, "price": number, "original_price": number|null, "currency": string, "in_stock": bool, "image_url": string, "brand": string}
If you cannot find a price, return {"name": null}.

HTML:
%s`

// ExtractLLM implements the LLM fallback extraction strategy (§4.2). It is
// only invoked when an LLM client is wired and the prior strategies failed.
func ExtractLLM(ctx context.Context, client LLMClient, html string) *domain.ProductSnapshot {
	if client == nil {
		return nil
	}

	prepared := preprocessForLLM(html)
	prompt := strings.Replace(llmExtractionPrompt, "%s", prepared, 1)

	raw, err := client.Complete(ctx, prompt)
	if err != nil {
		return nil
	}

	return parseLLMSnapshot(raw)
}

// preprocessForLLM strips non-content tags and comments, then truncates to
// maxLLMHTMLChars biased toward the region containing a product marker.
func preprocessForLLM(htmlSrc string) string {
	stripped := stripNonContentTags(htmlSrc)
	if len(stripped) <= maxLLMHTMLChars {
		return stripped
	}

	loc := productMarkerRe.FindStringIndex(stripped)
	if loc == nil {
		return truncateRunes(stripped, maxLLMHTMLChars)
	}

	start := loc[0] - maxLLMHTMLChars/4
	if start < 0 {
		start = 0
	}
	end := start + maxLLMHTMLChars
	if end > len(stripped) {
		end = len(stripped)
		start = end - maxLLMHTMLChars
		if start < 0 {
			start = 0
		}
	}
	return stripped[start:end]
}

var commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

func stripNonContentTags(htmlSrc string) string {
	s := regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`).ReplaceAllString(htmlSrc, "")
	s = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`).ReplaceAllString(s, "")
	s = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`).ReplaceAllString(s, "")
	s = regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`).ReplaceAllString(s, "")
	s = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`).ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	return s
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func parseLLMSnapshot(raw string) *domain.ProductSnapshot {
	body := raw
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}

	var out struct {
		Name          *string  `json:"name"`
		Price         *float64 `json:"price"`
		OriginalPrice *float64 `json:"original_price"`
		Currency      string   `json:"currency"`
		InStock       bool     `json:"in_stock"`
		ImageURL      string   `json:"image_url"`
		Brand         string   `json:"brand"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil
	}
	if out.Name == nil || out.Price == nil {
		return nil
	}

	p, ok := normalizePrice(strconv.FormatFloat(*out.Price, 'f', -1, 64))
	if !ok {
		return nil
	}

	currency := out.Currency
	if currency == "" {
		currency = "CAD"
	}

	snap := &domain.ProductSnapshot{
		Name:         sanitizeName(*out.Name),
		Price:        &p,
		Currency:     currency,
		InStock:      out.InStock,
		ImageURL:     sanitizeImageURL(out.ImageURL),
		Brand:        sanitizeField(out.Brand),
		StrategyUsed: domain.StrategyLLM,
	}
	if out.OriginalPrice != nil {
		if op, ok := normalizePrice(strconv.FormatFloat(*out.OriginalPrice, 'f', -1, 64)); ok {
			snap.OriginalPrice = &op
		}
	}
	if snap.Name == "" {
		return nil
	}
	return snap
}
