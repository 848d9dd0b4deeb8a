package retailers

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/carousel"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/parser"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

const (
	novoAtacarejoSelect   = "select.select"
	novoAtacarejoTabloids = "#tabloids a"
	novoAtacarejoNext     = "div.pdff-ui-btn.pdff-ui-next[title='Next Page']"
)

var novoAtacarejoValidity = parser.ValidityRule{
	Selectors: []string{
		`h6:contains("Validade"), h6:contains("validade"), h6:contains("VALIDADE")`,
		`p:contains("Validade"), p:contains("/"), p:contains("até")`,
	},
	Keyword: "valid",
	Date:    parser.DayMonth,
}

// NovoAtacarejo picks a city, then opens the first tabloids in their own
// pages and screenshots the first pages of each PDF viewer.
type NovoAtacarejo struct {
	URL      string
	Stores   []models.Store
	Tabloids int
	MaxPages int
	Settle   time.Duration
}

func NewNovoAtacarejo() *NovoAtacarejo {
	return &NovoAtacarejo{
		URL:      "https://novoatacarejo.com/oferta/",
		Stores:   []models.Store{{City: "Olinda"}},
		Tabloids: 2,
		MaxPages: 2,
		Settle:   5 * time.Second,
	}
}

func (n *NovoAtacarejo) Info() models.Retailer {
	return models.Retailer{Name: "Novo Atacarejo", Slug: "Novo-Atacarejo", BaseURL: n.URL}
}

func (n *NovoAtacarejo) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	visit := func(ctx context.Context, store models.Store) (int, error) {
		return n.visit(ctx, env, page, store)
	}
	onFail := func(store models.Store, err error) {
		env.Debug(page, store)
	}

	return EachStore(ctx, env.log(), env.Pacer, n.Stores, visit, onFail), nil
}

func (n *NovoAtacarejo) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	if err := env.Navigate(ctx, page, n.URL); err != nil {
		return 0, err
	}
	if _, err := selectMatching(ctx, page, novoAtacarejoSelect, store.City, 25*time.Second); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, 4*time.Second); err != nil {
		return 0, err
	}

	html := env.html(page)
	validity := env.Validity(env.Parser.ExtractValidity(html, novoAtacarejoValidity))
	dir := []string{slug.Path(store.City), validity}

	links, err := env.Parser.ExtractLinks(html, page.URL(), novoAtacarejoTabloids, "href")
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return 0, fmt.Errorf("tabloids for %s: %w", store.City, ErrNotFound)
	}
	if len(links) > n.Tabloids {
		links = links[:n.Tabloids]
	}
	env.log().Info("tabloids found", "count", len(links))

	saved := 0
	for i, link := range links {
		count, err := n.tabloid(ctx, env, store, dir, validity, i+1, link)
		saved += count
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			env.log().Warn("tabloid failed", "url", link, "error", err)
		}
	}
	return saved, nil
}

// tabloid opens link in a separate page so the listing stays untouched.
func (n *NovoAtacarejo) tabloid(ctx context.Context, env *Env, store models.Store, dir []string, validity string, journal int, link string) (int, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return 0, err
	}
	defer page.Close()

	if err := env.Navigate(ctx, page, link); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, n.Settle); err != nil {
		return 0, err
	}

	widget := &carousel.FlipbookWidget{
		Page:         page,
		NextSelector: novoAtacarejoNext,
		Settle:       n.Settle,
	}
	capture := func(ctx context.Context, s carousel.Slide) error {
		_, err := env.Screenshot(ctx, Item{
			Store:    store,
			Dir:      dir,
			Journal:  s.Journal,
			Page:     s.Page,
			Sub:      1,
			Ref:      link + "#" + s.Ref,
			Validity: validity,
		}, page)
		return err
	}

	res := env.Traverse(ctx, widget, journal, n.MaxPages, nil, capture)
	return res.Captured, res.Err
}
