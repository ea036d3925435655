package robots

import "testing"

func TestSplitDirective(t *testing.T) {
	key, val, ok := splitDirective("Disallow: /cart")
	if !ok || key != "Disallow" || val != "/cart" {
		t.Fatalf("splitDirective = (%q, %q, %v)", key, val, ok)
	}
	if _, _, ok := splitDirective("not a directive"); ok {
		t.Fatal("expected ok=false for a line with no colon")
	}
}

func TestNewMatcherUsesSpecificGroupOverWildcard(t *testing.T) {
	lines := []string{
		"User-agent: *",
		"Disallow: /private",
		"",
		"User-agent: pricewatchbot",
		"Disallow: /checkout",
		"Allow: /checkout/status",
		"Crawl-delay: 2",
	}
	m := newMatcher("pricewatchbot", lines)

	if m.allowed("/private") {
		t.Fatal("wildcard-only rule must not leak into the matched specific group")
	}
	if m.allowed("/checkout") {
		t.Fatal("/checkout must be disallowed for the specific group")
	}
	if !m.allowed("/checkout/status") {
		t.Fatal("/checkout/status has the longer allow match and must win")
	}
	if m.crawlDelay.Seconds() != 2 {
		t.Fatalf("crawlDelay = %v, want 2s", m.crawlDelay)
	}
}

func TestNewMatcherFallsBackToWildcard(t *testing.T) {
	lines := []string{
		"User-agent: *",
		"Disallow: /admin",
	}
	m := newMatcher("pricewatchbot", lines)

	if m.allowed("/admin") {
		t.Fatal("wildcard group must apply when no specific group is present")
	}
	if !m.allowed("/products/1") {
		t.Fatal("unmatched paths default to allowed")
	}
}

func TestMatcherAllowedDefaultsOpenWithNoRules(t *testing.T) {
	m := newMatcher("pricewatchbot", nil)
	if !m.allowed("/anything") {
		t.Fatal("an empty rule set must allow everything")
	}
}

func TestMatcherLongestMatchWins(t *testing.T) {
	m := &matcher{
		disallow: []string{"/a"},
		allow:    []string{"/a/b"},
	}
	if !m.allowed("/a/b/c") {
		t.Fatal("the longer allow prefix must win over the shorter disallow prefix")
	}
	if m.allowed("/a/x") {
		t.Fatal("paths under the disallow prefix but not the allow prefix must stay blocked")
	}
}
