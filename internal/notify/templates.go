package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// Rendered is a template's three output views.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// TemplateContext carries the values substituted into a notification
// template.
type TemplateContext struct {
	ProductName   string
	ProductURL    string
	CurrentPrice  float64
	PreviousPrice *float64
	AlertType     string
	StoreDomain   string
	SuccessRate   float64
}

// RenderTemplate renders one of the four notification templates
// (price_alert, back_in_stock, product_error, store_flagged) into
// {subject, html, text} (§4.12).
func RenderTemplate(name string, ctx TemplateContext) (Rendered, error) {
	switch name {
	case "price_alert":
		return renderPriceAlert(ctx), nil
	case "back_in_stock":
		return renderBackInStock(ctx), nil
	case "product_error":
		return renderProductError(ctx), nil
	case "store_flagged":
		return renderStoreFlagged(ctx), nil
	default:
		return Rendered{}, fmt.Errorf("notify: unknown template %q", name)
	}
}

func renderPriceAlert(ctx TemplateContext) Rendered {
	subject := fmt.Sprintf("Price drop: %s is now $%.2f", ctx.ProductName, ctx.CurrentPrice)
	prev := ""
	if ctx.PreviousPrice != nil {
		prev = fmt.Sprintf("<p>Previously: $%.2f</p>", *ctx.PreviousPrice)
	}
	html := fmt.Sprintf(
		`<h1>%s</h1><p>New price: $%.2f</p>%s<p><a href="%s">View product</a></p>`,
		escapeHTML(ctx.ProductName), ctx.CurrentPrice, prev, ctx.ProductURL,
	)
	return Rendered{Subject: subject, HTML: html, Text: htmlToText(html)}
}

func renderBackInStock(ctx TemplateContext) Rendered {
	subject := fmt.Sprintf("Back in stock: %s", ctx.ProductName)
	html := fmt.Sprintf(
		`<h1>%s is back in stock</h1><p>Current price: $%.2f</p><p><a href="%s">View product</a></p>`,
		escapeHTML(ctx.ProductName), ctx.CurrentPrice, ctx.ProductURL,
	)
	return Rendered{Subject: subject, HTML: html, Text: htmlToText(html)}
}

func renderProductError(ctx TemplateContext) Rendered {
	subject := fmt.Sprintf("Tracking issue: %s", ctx.ProductName)
	html := fmt.Sprintf(
		`<h1>We're having trouble tracking %s</h1><p>This product needs attention.</p><p><a href="%s">View product</a></p>`,
		escapeHTML(ctx.ProductName), ctx.ProductURL,
	)
	return Rendered{Subject: subject, HTML: html, Text: htmlToText(html)}
}

func renderStoreFlagged(ctx TemplateContext) Rendered {
	subject := fmt.Sprintf("Store flagged: %s", ctx.StoreDomain)
	html := fmt.Sprintf(
		`<h1>%s success rate has dropped</h1><p>Rolling 7-day success rate: %.0f%%</p>`,
		escapeHTML(ctx.StoreDomain), ctx.SuccessRate*100,
	)
	return Rendered{Subject: subject, HTML: html, Text: htmlToText(html)}
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

var (
	anchorRe = regexp.MustCompile(`(?is)<a\s+[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	entities = strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	)
)

// htmlToText converts a rendered HTML body into a plain-text view (§4.12):
// <br>/</p>/<li> expand to newlines, anchors become "text (href)", and
// common entities are decoded.
func htmlToText(html string) string {
	s := anchorRe.ReplaceAllString(html, "$2 ($1)")
	s = regexp.MustCompile(`(?i)<br\s*/?>`).ReplaceAllString(s, "\n")
	s = regexp.MustCompile(`(?i)</p>`).ReplaceAllString(s, "\n\n")
	s = regexp.MustCompile(`(?i)</li>`).ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = entities.Replace(s)
	s = regexp.MustCompile(`\n{3,}`).ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
