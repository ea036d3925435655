package domain

// ExtractionStrategy identifies which waterfall strategy produced a snapshot.
type ExtractionStrategy string

const (
	StrategyJSONLD ExtractionStrategy = "json_ld"
	StrategyCSS    ExtractionStrategy = "css"
	StrategyXPath  ExtractionStrategy = "xpath"
	StrategyLLM    ExtractionStrategy = "llm"
)

// ProductSnapshot is a single extraction outcome (glossary: "Snapshot").
type ProductSnapshot struct {
	Name          string
	Price         *float64
	OriginalPrice *float64
	Currency      string
	InStock       bool
	ImageURL      string
	Brand         string
	UPC           string
	StrategyUsed  ExtractionStrategy
}

// Complete reports whether the snapshot carries enough data to be accepted:
// name and price are both present and price has passed validation (§4.2).
func (s *ProductSnapshot) Complete() bool {
	if s == nil {
		return false
	}
	return s.Name != "" && s.Price != nil && ValidPrice(*s.Price)
}

// MinPrice and MaxPrice bound plausible product prices (§4.2).
const (
	MinPrice = 0.01
	MaxPrice = 1_000_000
)

// ValidPrice reports whether p falls within the accepted price range.
func ValidPrice(p float64) bool {
	return p >= MinPrice && p <= MaxPrice
}
