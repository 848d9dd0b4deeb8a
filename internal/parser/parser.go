package parser

// Parser extracts flyer metadata from a rendered page's HTML.
type Parser interface {
	ExtractValidity(html string, rule ValidityRule) string
	FirstText(html string, selector string) string
	ExtractLinks(html, pageURL, selector, attr string) ([]string, error)
	FindCard(html, cardSelector, titleSelector, name string) (int, string)
}
