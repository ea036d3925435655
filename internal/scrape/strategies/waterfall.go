package strategies

import (
	"context"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// Extract runs the fixed JSON-LD -> CSS -> XPath -> LLM waterfall (§4.2),
// stopping at the first complete snapshot. llmClient may be nil, in which
// case the LLM tier is skipped.
func Extract(ctx context.Context, html string, selectors domain.SelectorSet, llmClient LLMClient) *domain.ProductSnapshot {
	if selectors.JSONLD {
		if snap := ExtractJSONLD(html); snap.Complete() {
			return snap
		}
	}

	if snap := ExtractCSS(html, selectors); snap.Complete() {
		return snap
	}

	if snap := ExtractXPath(html, selectors); snap.Complete() {
		return snap
	}

	if snap := ExtractLLM(ctx, llmClient, html); snap.Complete() {
		return snap
	}

	return nil
}
