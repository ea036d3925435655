package strategies

import "testing"

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantOK  bool
	}{
		{"$19.99", 19.99, true},
		{"CAD 1,299.00", 1299.00, true},
		{"19.99 - 24.99", 19.99, true},
		{"", 0, false},
		{"free", 0, false},
		{"0.00", 0, false},
		{"2,000,000", 0, false},
	}
	for _, c := range cases {
		got, ok := normalizePrice(c.in)
		if ok != c.wantOK {
			t.Fatalf("normalizePrice(%q) ok=%v want %v", c.in, ok, c.wantOK)
		}
		if ok && got != c.want {
			t.Fatalf("normalizePrice(%q) = %v want %v", c.in, got, c.want)
		}
	}
}
