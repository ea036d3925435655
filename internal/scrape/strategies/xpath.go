package strategies

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// ExtractXPath implements the XPath extraction strategy (§4.2). It only runs
// when the selector set provides xpath entries for a field.
func ExtractXPath(htmlSrc string, selectors domain.SelectorSet) *domain.ProductSnapshot {
	if len(selectors.Price.XPath) == 0 && len(selectors.Name.XPath) == 0 {
		return nil
	}

	doc, err := htmlquery.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	snap := &domain.ProductSnapshot{
		Currency:     "CAD",
		StrategyUsed: domain.StrategyXPath,
	}

	if name := firstXPathText(doc, selectors.Name.XPath); name != "" {
		snap.Name = sanitizeName(name)
	}
	if priceText := firstXPathText(doc, selectors.Price.XPath); priceText != "" {
		if p, ok := normalizePrice(priceText); ok {
			snap.Price = &p
		}
	}
	if origText := firstXPathText(doc, selectors.OriginalPrice.XPath); origText != "" {
		if p, ok := normalizePrice(origText); ok {
			snap.OriginalPrice = &p
		}
	}
	if img := firstXPathAttr(doc, selectors.Image.XPath, "src"); img != "" {
		snap.ImageURL = sanitizeImageURL(img)
	}

	snap.InStock = availabilityFromXPath(doc, selectors)

	if snap.Name == "" || snap.Price == nil {
		return nil
	}
	return snap
}

func firstXPathText(doc *html.Node, exprs []string) string {
	for _, expr := range exprs {
		node, err := htmlquery.Query(doc, expr)
		if err != nil || node == nil {
			continue
		}
		if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
			return text
		}
	}
	return ""
}

func firstXPathAttr(doc *html.Node, exprs []string, attr string) string {
	for _, expr := range exprs {
		node, err := htmlquery.Query(doc, expr)
		if err != nil || node == nil {
			continue
		}
		if v := htmlquery.SelectAttr(node, attr); v != "" {
			return v
		}
	}
	return ""
}

func availabilityFromXPath(doc *html.Node, selectors domain.SelectorSet) bool {
	patterns := selectors.Availability.Patterns
	if len(patterns) == 0 {
		patterns = inStockSubstrings
	}
	for _, expr := range selectors.Availability.XPath {
		node, err := htmlquery.Query(doc, expr)
		if err != nil || node == nil {
			continue
		}
		if strings.EqualFold(node.Data, "button") {
			return true
		}
		text := strings.ToLower(strings.TrimSpace(htmlquery.InnerText(node)))
		for _, p := range patterns {
			if strings.Contains(text, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}
	return false
}
