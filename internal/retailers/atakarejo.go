package retailers

import (
	"context"
	"fmt"
	"sort"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/parser"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

const atakarejoLinks = "a.button-download-ofertas, a[href*='.pdf']"

// Headings and paragraphs naming the validity, then anything inside a
// validity or offer block that carries a full date.
var atakarejoValidity = parser.ValidityRule{
	Selectors: []string{
		`h3:contains("Validade"), h3:contains("validade"), h3:contains("VALIDADE")`,
		`p:contains("Validade"), p:contains("VALIDADE")`,
		"div[class*='validade'] p, div[class*='validade'] h3, div[class*='oferta'] p, div[class*='oferta'] h3",
	},
	Keyword: "validade",
	Date:    parser.FullDate,
	Body:    parser.BodyValidity,
}

// Atakarejo publishes one PDF per flyer on a per-city page.
type Atakarejo struct {
	Cities map[string]string
}

func NewAtakarejo() *Atakarejo {
	return &Atakarejo{
		Cities: map[string]string{
			"Vitoria-da-Conquista": "https://atakarejo.com.br/cidade/vitoria-da-conquista",
		},
	}
}

func (a *Atakarejo) Info() models.Retailer {
	return models.Retailer{Name: "Atakarejo", Slug: "Atakarejo", BaseURL: "https://atakarejo.com.br"}
}

func (a *Atakarejo) stores() []models.Store {
	cities := make([]string, 0, len(a.Cities))
	for city := range a.Cities {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	stores := make([]models.Store, 0, len(cities))
	for _, city := range cities {
		stores = append(stores, models.Store{City: city})
	}
	return stores
}

func (a *Atakarejo) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	visit := func(ctx context.Context, store models.Store) (int, error) {
		return a.visit(ctx, env, page, store)
	}
	onFail := func(store models.Store, err error) {
		env.Debug(page, store)
	}

	return EachStore(ctx, env.log(), env.Pacer, a.stores(), visit, onFail), nil
}

func (a *Atakarejo) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	url, ok := a.Cities[store.City]
	if !ok {
		return 0, fmt.Errorf("city %q: %w", store.City, ErrNotFound)
	}
	if err := env.Navigate(ctx, page, url); err != nil {
		return 0, err
	}

	if err := page.Locator(atakarejoLinks).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(env.Timeout.Milliseconds())),
	}); err != nil {
		return 0, fmt.Errorf("waiting for flyer links: %w", browser.Wrap(err))
	}

	html := env.html(page)
	links, err := env.Parser.ExtractLinks(html, page.URL(), atakarejoLinks, "href")
	if err != nil {
		return 0, err
	}
	env.log().Info("flyers found", "count", len(links))

	validity := env.Validity(env.Parser.ExtractValidity(html, atakarejoValidity))
	dir := []string{slug.Path(store.City), validity}

	saved := 0
	for i, link := range links {
		_, err := env.Download(ctx, Item{
			Store:    store,
			Dir:      dir,
			Journal:  i + 1,
			Page:     1,
			Sub:      1,
			Validity: validity,
		}, link, page.URL(), "pdf")
		if err != nil {
			env.log().Warn("flyer download failed", "url", link, "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}
