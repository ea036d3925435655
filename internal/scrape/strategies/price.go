package strategies

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// priceGlyphRe strips currency symbols and letters, leaving digits,
// separators, and the range dash.
var priceGlyphRe = regexp.MustCompile(`[^\d.,\-\s]`)

// normalizePrice parses a raw price string into a validated, rounded price.
// It picks the first side of a dash-separated range, strips thousands
// separators, rounds to cents, and range-checks the result.
func normalizePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = priceGlyphRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "-"); idx > 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	v = math.Round(v*100) / 100
	if !domain.ValidPrice(v) {
		return 0, false
	}
	return v, true
}
