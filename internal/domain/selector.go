package domain

// FieldSelectors is the ordered list of extraction rules for a single
// product field. CSS/XPath lists are tried in order; the first non-empty
// match wins. Patterns is only meaningful for the availability field, where
// it holds in-stock substrings.
type FieldSelectors struct {
	CSS      []string `json:"css,omitempty"`
	XPath    []string `json:"xpath,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
}

// Empty reports whether the field carries no CSS, XPath, or pattern rules.
func (f FieldSelectors) Empty() bool {
	return len(f.CSS) == 0 && len(f.XPath) == 0 && len(f.Patterns) == 0
}

// SelectorSet is a tagged record standing in for the source's heterogeneous
// selector dictionary (design note §9: "Dynamic typing around selectors").
// It is owned exclusively by Store and serialized to JSON for persistence.
type SelectorSet struct {
	Price         FieldSelectors `json:"price"`
	Name          FieldSelectors `json:"name"`
	Availability  FieldSelectors `json:"availability"`
	Image         FieldSelectors `json:"image,omitempty"`
	OriginalPrice FieldSelectors `json:"original_price,omitempty"`
	WaitFor       string         `json:"wait_for,omitempty"`
	JSONLD        bool           `json:"json_ld"`
}

// ValidForHealing reports whether a candidate selector set passes the
// structural validation gate required before a healing merge (§4.13 step 4):
// price, name, and availability each need a non-empty CSS list.
func (s SelectorSet) ValidForHealing() bool {
	return len(s.Price.CSS) > 0 && len(s.Name.CSS) > 0 && len(s.Availability.CSS) > 0
}

// Merge overlays non-empty fields from other onto a copy of s, preserving any
// key in s that other leaves empty. This implements the "merge, never drop
// unrelated keys" contract of Store Registry.update_selectors (§4.1) and the
// healing merge in §4.13.
func (s SelectorSet) Merge(other SelectorSet) SelectorSet {
	out := s
	if !other.Price.Empty() {
		out.Price = other.Price
	}
	if !other.Name.Empty() {
		out.Name = other.Name
	}
	if !other.Availability.Empty() {
		out.Availability = other.Availability
	}
	if !other.Image.Empty() {
		out.Image = other.Image
	}
	if !other.OriginalPrice.Empty() {
		out.OriginalPrice = other.OriginalPrice
	}
	if other.WaitFor != "" {
		out.WaitFor = other.WaitFor
	}
	// json_ld is a plain boolean flag; only raise it, never silently lower it,
	// so a healed selector set can't accidentally disable a working JSON-LD path.
	if other.JSONLD {
		out.JSONLD = true
	}
	return out
}
