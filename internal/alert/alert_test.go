package alert

import (
	"testing"

	"github.com/pricewatch/pricewatch/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestEvaluateTargetPriceHit(t *testing.T) {
	a := domain.Alert{Active: true, Type: domain.AlertTypeTargetPrice, TargetValue: f(100)}
	out := Evaluate(a, 95, f(110), true, true)
	if !out.Triggered {
		t.Fatalf("expected triggered, got %+v", out)
	}
}

func TestEvaluatePercentDropBelowThreshold(t *testing.T) {
	a := domain.Alert{Active: true, Type: domain.AlertTypePercentDrop, TargetValue: f(5), MinChangeThreshold: 2}
	out := Evaluate(a, 99, f(100), true, true)
	if out.Triggered {
		t.Fatalf("expected not triggered, got %+v", out)
	}
}

func TestEvaluateBackInStock(t *testing.T) {
	a := domain.Alert{Active: true, Type: domain.AlertTypeBackInStock}
	out := Evaluate(a, 50, f(50), true, false)
	if !out.Triggered {
		t.Fatalf("expected triggered, got %+v", out)
	}
}

func TestEvaluateAnyChangeRequiresPrior(t *testing.T) {
	a := domain.Alert{Active: true, Type: domain.AlertTypeAnyChange, MinChangeThreshold: 1}
	out := Evaluate(a, 50, nil, true, true)
	if out.Triggered {
		t.Fatalf("expected not triggered without prior price, got %+v", out)
	}
}

func TestEvaluateInactive(t *testing.T) {
	a := domain.Alert{Active: false, Type: domain.AlertTypeTargetPrice, TargetValue: f(100)}
	out := Evaluate(a, 50, f(110), true, true)
	if out.Triggered {
		t.Fatalf("expected not triggered for inactive alert, got %+v", out)
	}
}
