package strategies

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricewatch/pricewatch/internal/domain"
)

var acceptedJSONLDTypes = map[string]bool{
	"Product":          true,
	"IndividualProduct": true,
	"ProductModel":     true,
}

var inStockSubstrings = []string{"instock", "in stock", "available", "preorder", "pre-order"}

// ExtractJSONLD implements the JSON-LD extraction strategy (§4.2). It parses
// every <script type="application/ld+json"> payload, resolves @graph and
// mainEntity(OfPage) nesting, and returns the first complete snapshot found.
func ExtractJSONLD(html string) *domain.ProductSnapshot {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var result *domain.ProductSnapshot
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return true
		}
		if snap := walkJSONLDNode(payload); snap != nil && snap.Complete() {
			result = snap
			return false
		}
		return true
	})
	return result
}

// walkJSONLDNode searches a decoded JSON-LD document for the first node that
// resolves to a complete product snapshot.
func walkJSONLDNode(node any) *domain.ProductSnapshot {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if snap := walkJSONLDNode(item); snap != nil {
				return snap
			}
		}
		return nil
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			if snap := walkJSONLDNode(graph); snap != nil {
				return snap
			}
		}
		if isProductType(v["@type"]) {
			if snap := productFromNode(v); snap != nil {
				return snap
			}
		}
		for _, key := range []string{"mainEntity", "mainEntityOfPage"} {
			if nested, ok := v[key]; ok {
				if snap := walkJSONLDNode(nested); snap != nil {
					return snap
				}
			}
		}
		return nil
	default:
		return nil
	}
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return acceptedJSONLDTypes[v]
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && acceptedJSONLDTypes[s] {
				return true
			}
		}
	}
	return false
}

func productFromNode(node map[string]any) *domain.ProductSnapshot {
	snap := &domain.ProductSnapshot{
		Currency:     "CAD",
		StrategyUsed: domain.StrategyJSONLD,
	}

	if name, ok := node["name"].(string); ok {
		snap.Name = sanitizeName(name)
	}

	snap.Brand = brandFromNode(node["brand"])
	snap.UPC = identifierFromNode(node)
	snap.ImageURL = imageFromNode(node["image"])

	price, currency, available, ok := offersFromNode(node["offers"])
	if ok {
		snap.Price = &price
		if currency != "" {
			snap.Currency = currency
		}
		snap.InStock = available
	}

	if snap.Name == "" || snap.Price == nil {
		return nil
	}
	return snap
}

func brandFromNode(v any) string {
	switch b := v.(type) {
	case string:
		return sanitizeField(b)
	case map[string]any:
		if name, ok := b["name"].(string); ok {
			return sanitizeField(name)
		}
	}
	return ""
}

func identifierFromNode(node map[string]any) string {
	for _, key := range []string{"gtin13", "gtin", "sku"} {
		if s, ok := node[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func imageFromNode(v any) string {
	switch img := v.(type) {
	case string:
		return sanitizeImageURL(img)
	case []any:
		if len(img) > 0 {
			return imageFromNode(img[0])
		}
	case map[string]any:
		if url, ok := img["url"].(string); ok {
			return sanitizeImageURL(url)
		}
	}
	return ""
}

// offersFromNode extracts price, currency, and availability from an Offer,
// AggregateOffer, or array of offers. For AggregateOffer, lowPrice is
// preferred over price.
func offersFromNode(v any) (price float64, currency string, inStock bool, ok bool) {
	switch offers := v.(type) {
	case []any:
		for _, item := range offers {
			if p, c, a, found := offersFromNode(item); found {
				return p, c, a, true
			}
		}
		return 0, "", false, false
	case map[string]any:
		currency, _ = offers["priceCurrency"].(string)

		var raw any
		if lp, has := offers["lowPrice"]; has {
			raw = lp
		} else if p, has := offers["price"]; has {
			raw = p
		}

		priceStr := stringifyNumeric(raw)
		p, valid := normalizePrice(priceStr)
		if !valid {
			return 0, "", false, false
		}

		avail, _ := offers["availability"].(string)
		return p, currency, availabilityMatches(avail), true
	default:
		return 0, "", false, false
	}
}

func stringifyNumeric(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return trimFloat(n)
	default:
		return ""
	}
}

func trimFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func availabilityMatches(s string) bool {
	lower := strings.ToLower(s)
	for _, sub := range inStockSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
