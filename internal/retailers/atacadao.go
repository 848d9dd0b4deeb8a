package retailers

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

const (
	atacadaoUFSelect   = `select[class*="md:w-[96px]"]`
	atacadaoCitySelect = `select[class*="md:w-[360px]"]`
	atacadaoStoreCard  = `[data-testid='store-card']`
	atacadaoFlyerLink  = `a[href*='Flyer/?id=']`
	atacadaoValidity   = "p.text-xs.text-neutral-400"
)

var atacadaoStores = []models.Store{
	{State: "AL", City: "Maceió", Name: "Maceió Praia"},
	{State: "CE", City: "Fortaleza", Name: "Fortaleza Fátima"},
	{State: "PA", City: "Belém", Name: "Belém Portal da Amazônia"},
	{State: "PB", City: "João Pessoa", Name: "João Pessoa Bessa"},
	{State: "PE", City: "Recife", Name: "Recife Avenida Recife"},
	{State: "PI", City: "Teresina", Name: "Teresina Primavera"},
	{State: "SE", City: "Aracaju", Name: "Aracaju Tancredo Neves"},
	{State: "BA", City: "Vitória Da Conquista", Name: "Vitória da Conquista"},
	{State: "MA", City: "São Luís", Name: "São Luís"},
}

// Atacadao walks the "nossas lojas" locator and downloads the PDF flyers
// linked from each store page.
type Atacadao struct {
	URL    string
	Stores []models.Store
}

func NewAtacadao() *Atacadao {
	return &Atacadao{
		URL:    "https://www.atacadao.com.br/institucional/nossas-lojas",
		Stores: atacadaoStores,
	}
}

func (a *Atacadao) Info() models.Retailer {
	return models.Retailer{Name: "Atacadão", Slug: "Atacadao", BaseURL: a.URL}
}

func (a *Atacadao) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
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

	return EachStore(ctx, env.log(), env.Pacer, a.Stores, visit, onFail), nil
}

// confirm dismisses the location prompt shown on every fresh load.
func (a *Atacadao) confirm(page playwright.Page) {
	btn, err := browser.WaitVisible(page, `button:has-text("Confirmar")`, 5*time.Second)
	if err != nil {
		return
	}
	_ = browser.ClickRobust(btn)
}

func (a *Atacadao) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	// The locator keeps stale cards after a search, so every store starts
	// from a fresh load.
	if err := env.Navigate(ctx, page, a.URL); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, 2*time.Second); err != nil {
		return 0, err
	}
	a.confirm(page)

	uf := page.Locator(atacadaoUFSelect).First()
	if _, err := uf.SelectOption(playwright.SelectOptionValues{Values: &[]string{store.State}}); err != nil {
		return 0, fmt.Errorf("state %s: %w", store.State, ErrNotFound)
	}
	if err := browser.Pause(ctx, time.Second); err != nil {
		return 0, err
	}

	if _, err := selectMatching(ctx, page, atacadaoCitySelect, store.City, 15*time.Second); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, time.Second); err != nil {
		return 0, err
	}

	if _, err := browser.WaitVisible(page, atacadaoStoreCard, env.Timeout); err != nil {
		return 0, err
	}
	idx, title := env.Parser.FindCard(env.html(page), atacadaoStoreCard, "h1", store.Name)
	if idx < 0 {
		return 0, fmt.Errorf("store %q: %w", store.Name, ErrNotFound)
	}

	env.log().Info("opening store", "title", title)
	if err := browser.ClickRobust(page.Locator(atacadaoStoreCard).Nth(idx).Locator("a").First()); err != nil {
		return 0, err
	}

	if _, err := browser.WaitVisible(page, atacadaoFlyerLink, 15*time.Second); err != nil {
		env.log().Info("no flyer links on store page", "title", title)
		return 0, nil
	}

	html := env.html(page)
	validity := env.Validity(env.Parser.FirstText(html, atacadaoValidity))
	links, err := env.Parser.ExtractLinks(html, page.URL(), atacadaoFlyerLink, "href")
	if err != nil {
		return 0, err
	}

	dir := []string{store.State, slug.Path(store.City), slug.Path(title), validity}
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
