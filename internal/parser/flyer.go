package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/encarte-scraper/internal/download"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

var (
	// FullDate matches dd/mm/yyyy style dates.
	FullDate = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)
	// DayMonth matches dd/mm and dd-mm.
	DayMonth = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}`)
	// BodyValidity finds "validade ... dd/mm/yyyy ..." in free text.
	BodyValidity = regexp.MustCompile(`(?is)(validade.*?)(\d{1,2}/\d{1,2}/\d{2,4}.*)$`)
)

// ValidityRule says where a retailer prints its validity and what counts
// as one. A text is accepted when its folded form contains Keyword or it
// matches Date. Body, when set, is tried on the page text last.
type ValidityRule struct {
	Selectors []string
	Keyword   string
	Date      *regexp.Regexp
	Body      *regexp.Regexp
}

func (r ValidityRule) accepts(text string) bool {
	if r.Keyword != "" && strings.Contains(slug.Fold(text), r.Keyword) {
		return true
	}
	return r.Date != nil && r.Date.MatchString(text)
}

type FlyerParser struct{}

func NewFlyerParser() *FlyerParser {
	return &FlyerParser{}
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractValidity returns the first text under rule.Selectors that the rule
// accepts, then the rule.Body match of the page text. Empty means nothing
// was found.
func (p *FlyerParser) ExtractValidity(html string, rule ValidityRule) string {
	doc, err := parse(html)
	if err != nil {
		return ""
	}

	for _, sel := range rule.Selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := cleanText(s.Text())
			if text != "" && rule.accepts(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if rule.Body == nil {
		return ""
	}
	if m := rule.Body.FindString(doc.Find("body").Text()); m != "" {
		return cleanText(m)
	}
	return ""
}

// FirstText returns the first non-empty text matching selector.
func (p *FlyerParser) FirstText(html string, selector string) string {
	doc, err := parse(html)
	if err != nil {
		return ""
	}

	var text string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = cleanText(s.Text())
		return text == ""
	})
	return text
}

// ExtractLinks collects attr from every element matching selector, resolved
// against pageURL, without duplicates and in document order.
func (p *FlyerParser) ExtractLinks(html, pageURL, selector, attr string) ([]string, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	links := make([]string, 0)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr(attr)
		if !ok {
			return
		}
		u := download.NormalizeURL(raw, pageURL)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		links = append(links, u)
	})
	return links, nil
}

// FindCard returns the index of the first card whose title contains name,
// compared without case or accents, plus the title text. -1 when absent.
func (p *FlyerParser) FindCard(html, cardSelector, titleSelector, name string) (int, string) {
	doc, err := parse(html)
	if err != nil {
		return -1, ""
	}

	want := slug.Fold(name)
	idx, title := -1, ""
	doc.Find(cardSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		t := cleanText(s.Find(titleSelector).First().Text())
		if t != "" && strings.Contains(slug.Fold(t), want) {
			idx, title = i, t
			return false
		}
		return true
	})
	return idx, title
}
