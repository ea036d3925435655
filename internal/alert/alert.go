// Package alert implements the Alert Evaluator (§4.11): a pure predicate
// per alert type over the current and previous price/stock observation.
package alert

import "github.com/pricewatch/pricewatch/internal/domain"

// Outcome is the result of evaluating one alert against an observation.
type Outcome struct {
	Triggered bool
	Reason    string
}

// Evaluate implements the per-type trigger predicate of §4.11.
func Evaluate(a domain.Alert, currentPrice float64, previousPrice *float64, inStock, wasInStock bool) Outcome {
	if !a.Active {
		return Outcome{Triggered: false, Reason: "alert inactive"}
	}

	if a.Type == domain.AlertTypeBackInStock {
		if inStock && !wasInStock {
			return Outcome{Triggered: true, Reason: "back in stock"}
		}
		return Outcome{Triggered: false, Reason: "stock state unchanged"}
	}

	if !inStock {
		return Outcome{Triggered: false, Reason: "out of stock"}
	}

	switch a.Type {
	case domain.AlertTypeTargetPrice:
		if a.TargetValue == nil {
			return Outcome{Triggered: false, Reason: "no target value configured"}
		}
		if currentPrice <= *a.TargetValue {
			return Outcome{Triggered: true, Reason: "price at or below target"}
		}
		return Outcome{Triggered: false, Reason: "price above target"}

	case domain.AlertTypePercentDrop:
		if previousPrice == nil || *previousPrice <= 0 || a.TargetValue == nil {
			return Outcome{Triggered: false, Reason: "no prior price to compare"}
		}
		drop := *previousPrice - currentPrice
		threshold := a.MinChangeThreshold
		if threshold <= 0 {
			threshold = 1.0
		}
		if drop < threshold {
			return Outcome{Triggered: false, Reason: "drop below min change threshold"}
		}
		pct := (drop / *previousPrice) * 100
		if pct >= *a.TargetValue {
			return Outcome{Triggered: true, Reason: "percent drop met target"}
		}
		return Outcome{Triggered: false, Reason: "percent drop below target"}

	case domain.AlertTypeAnyChange:
		if previousPrice == nil {
			return Outcome{Triggered: false, Reason: "no prior price to compare"}
		}
		threshold := a.MinChangeThreshold
		if threshold <= 0 {
			threshold = 1.0
		}
		delta := currentPrice - *previousPrice
		if delta < 0 {
			delta = -delta
		}
		if delta >= threshold {
			return Outcome{Triggered: true, Reason: "price change met threshold"}
		}
		return Outcome{Triggered: false, Reason: "price change below threshold"}

	default:
		return Outcome{Triggered: false, Reason: "unknown alert type"}
	}
}
