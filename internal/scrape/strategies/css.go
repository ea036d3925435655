package strategies

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// ExtractCSS implements the CSS extraction strategy (§4.2). It iterates the
// configured selector list per field, taking the first non-empty match.
func ExtractCSS(html string, selectors domain.SelectorSet) *domain.ProductSnapshot {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	snap := &domain.ProductSnapshot{
		Currency:     "CAD",
		StrategyUsed: domain.StrategyCSS,
	}

	if name := firstMatchText(doc, selectors.Name.CSS); name != "" {
		snap.Name = sanitizeName(name)
	}

	if priceText := firstMatchText(doc, selectors.Price.CSS); priceText != "" {
		if p, ok := normalizePrice(priceText); ok {
			snap.Price = &p
		}
	}

	if origText := firstMatchText(doc, selectors.OriginalPrice.CSS); origText != "" {
		if p, ok := normalizePrice(origText); ok {
			snap.OriginalPrice = &p
		}
	}

	if img := firstMatchAttr(doc, selectors.Image.CSS, "src"); img != "" {
		snap.ImageURL = sanitizeImageURL(img)
	}

	snap.InStock = availabilityFromCSS(doc, selectors)

	if snap.Name == "" || snap.Price == nil {
		return nil
	}
	return snap
}

func firstMatchText(doc *goquery.Document, css []string) string {
	for _, sel := range css {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstMatchAttr(doc *goquery.Document, css []string, attr string) string {
	for _, sel := range css {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// availabilityFromCSS implements the §4.2 rule: if the configured selector
// matches and its text contains an in-stock substring, or the matched
// element is a button, mark in-stock; otherwise out-of-stock.
func availabilityFromCSS(doc *goquery.Document, selectors domain.SelectorSet) bool {
	for _, sel := range selectors.Availability.CSS {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if goquery.NodeName(node) == "button" {
			return true
		}
		text := strings.ToLower(strings.TrimSpace(node.Text()))
		patterns := selectors.Availability.Patterns
		if len(patterns) == 0 {
			patterns = inStockSubstrings
		}
		for _, p := range patterns {
			if strings.Contains(text, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}
	return false
}
