// Package seed holds the immutable store configuration reconciled into the
// persistent Store Registry on startup (§4.1, §6).
package seed

import (
	"context"
	"fmt"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// Stores is the compiled-in seed list. On reconcile, StoreRegistry.Upsert
// inserts an unknown domain with every field below; for a domain already
// persisted it overwrites only DisplayName, Whitelisted and RateLimitRPM and
// keeps the stored Active flag, selectors (including those learned by
// healing), success_rate and last_success_at.
var Stores = []domain.Store{
	{Domain: "amazon.ca", DisplayName: "Amazon Canada", Whitelisted: true, Active: true, RateLimitRPM: 20, Selectors: selectorsFor("amazon")},
	{Domain: "walmart.ca", DisplayName: "Walmart Canada", Whitelisted: true, Active: true, RateLimitRPM: 15, Selectors: selectorsFor("walmart")},
	{Domain: "bestbuy.ca", DisplayName: "Best Buy Canada", Whitelisted: true, Active: true, RateLimitRPM: 15, Selectors: selectorsFor("bestbuy")},
	{Domain: "loblaws.ca", DisplayName: "Loblaws", Whitelisted: true, Active: true, RateLimitRPM: 10, Selectors: selectorsFor("loblaws")},
	{Domain: "canadiantire.ca", DisplayName: "Canadian Tire", Whitelisted: true, Active: true, RateLimitRPM: 10, Selectors: selectorsFor("canadiantire")},
	{Domain: "homedepot.ca", DisplayName: "The Home Depot Canada", Whitelisted: true, Active: true, RateLimitRPM: 10, Selectors: selectorsFor("homedepot")},
	{Domain: "costco.ca", DisplayName: "Costco Canada", Whitelisted: true, Active: true, RateLimitRPM: 10, Selectors: selectorsFor("costco")},
	{Domain: "staples.ca", DisplayName: "Staples Canada", Whitelisted: true, Active: true, RateLimitRPM: 10, Selectors: selectorsFor("staples")},
	{Domain: "londondrugs.com", DisplayName: "London Drugs", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("londondrugs")},
	{Domain: "indigo.ca", DisplayName: "Indigo", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("indigo")},
	{Domain: "mec.ca", DisplayName: "Mountain Equipment Company", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("mec")},
	{Domain: "sportchek.ca", DisplayName: "Sport Chek", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("sportchek")},
	{Domain: "wayfair.ca", DisplayName: "Wayfair Canada", Whitelisted: true, Active: true, RateLimitRPM: 10, Selectors: selectorsFor("wayfair")},
	{Domain: "well.ca", DisplayName: "Well.ca", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("well")},
	{Domain: "marks.com", DisplayName: "Mark's", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("marks")},
	{Domain: "thesource.ca", DisplayName: "The Source", Whitelisted: true, Active: true, RateLimitRPM: 8, Selectors: selectorsFor("thesource")},
}

// selectorsFor returns a reasonable starting selector dictionary for a
// retailer. Real-world selectors drift constantly; these are a seed, not a
// guarantee, and healing is expected to correct them after the first few
// STRUCTURE_CHANGE failures (§4.13).
func selectorsFor(retailer string) domain.SelectorSet {
	return domain.SelectorSet{
		Price: domain.FieldSelectors{
			CSS: []string{
				fmt.Sprintf("[data-testid=%q]", retailer+"-price"),
				".price", ".product-price", "[itemprop=price]",
			},
		},
		Name: domain.FieldSelectors{
			CSS: []string{"h1.product-title", "h1[itemprop=name]", "h1"},
		},
		Availability: domain.FieldSelectors{
			CSS:      []string{".availability", "[data-testid=fulfillment]", "button.add-to-cart"},
			Patterns: []string{"in stock", "available", "add to cart"},
		},
		Image: domain.FieldSelectors{
			CSS: []string{"img.product-image", "[itemprop=image]"},
		},
		JSONLD: true,
	}
}

// Reconcile upserts every seed Store into the registry. Safe to call on
// every startup; StoreRegistry.Upsert preserves fields the seed leaves
// unset.
func Reconcile(ctx context.Context, registry domain.StoreRegistry) error {
	for _, s := range Stores {
		if err := registry.Upsert(ctx, s); err != nil {
			return fmt.Errorf("seed: upsert %s: %w", s.Domain, err)
		}
	}
	return nil
}
