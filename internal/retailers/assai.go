package retailers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/carousel"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

const (
	assaiModal       = "div.modal-loja"
	assaiModalOpener = "a.seletor-loja"
	assaiSlider      = "div.ofertas-slider"
	assaiValidity    = "div.ofertas-tab-validade"
	assaiJournals    = 3
)

var assaiStores = []models.Store{
	{State: "Maranhão", Name: "Assaí Angelim"},
	{State: "Alagoas", Name: "Assaí Maceió Farol"},
	{State: "Ceará", Name: "Assaí Bezerra M (Fortaleza)"},
	{State: "Pará", Name: "Assaí Belém"},
	{State: "Paraíba", Name: "Assaí João Pessoa Geisel"},
	{State: "Pernambuco", Name: "Assaí Avenida Recife"},
	{State: "Piauí", Name: "Assaí Teresina"},
	{State: "Sergipe", Name: "Assaí Aracaju"},
	{State: "Bahia", Region: "Interior", Name: "Assaí Vitória da Conquista"},
}

// Assai scrapes the slick carousel on assai.com.br/ofertas. Each store has
// up to three journals; every slide is an image downloaded over HTTP.
type Assai struct {
	URL    string
	Stores []models.Store
}

func NewAssai() *Assai {
	return &Assai{
		URL:    "https://www.assai.com.br/ofertas",
		Stores: assaiStores,
	}
}

func (a *Assai) Info() models.Retailer {
	return models.Retailer{Name: "Assaí", Slug: "Assai", BaseURL: a.URL}
}

func (a *Assai) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := env.Open(ctx, page, a.URL); err != nil {
		return nil, err
	}
	a.openModal(env, page)

	visit := func(ctx context.Context, store models.Store) (int, error) {
		return a.visit(ctx, env, page, store)
	}
	onFail := func(store models.Store, err error) {
		env.Debug(page, store)
		a.openModal(env, page)
	}

	return EachStore(ctx, env.log(), env.Pacer, a.Stores, visit, onFail), nil
}

// openModal makes sure the store picker is showing. It sometimes opens on
// its own after the first load.
func (a *Assai) openModal(env *Env, page playwright.Page) {
	if _, err := browser.WaitVisible(page, assaiModal, 10*time.Second); err == nil {
		return
	}

	opener, err := browser.WaitVisible(page, assaiModalOpener, 10*time.Second)
	if err != nil {
		env.log().Warn("store picker not available", "error", err)
		return
	}
	if err := browser.ClickRobust(opener); err != nil {
		env.log().Warn("failed to open store picker", "error", err)
		return
	}
	if _, err := browser.WaitVisible(page, assaiModal, 10*time.Second); err != nil {
		env.log().Warn("store picker did not open", "error", err)
	}
}

func (a *Assai) closeModal(page playwright.Page) {
	btn := page.Locator("button[title='Close']").First()
	if n, err := btn.Count(); err == nil && n > 0 {
		_ = btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)})
	}
}

func (a *Assai) selectStore(ctx context.Context, env *Env, page playwright.Page, store models.Store) error {
	log := env.log().With("store", store.Label())

	if _, err := selectMatching(ctx, page, "select.estado", store.State, 20*time.Second); err != nil {
		return err
	}
	if err := browser.Pause(ctx, time.Second); err != nil {
		return err
	}

	if store.Region != "" {
		if _, err := selectMatching(ctx, page, "select.regiao", store.Region, 20*time.Second); err != nil {
			log.Warn("region not selected", "region", store.Region, "error", err)
		}
		if err := browser.Pause(ctx, 800*time.Millisecond); err != nil {
			return err
		}
	}

	if _, err := selectMatching(ctx, page, "select.loja", store.Name, 20*time.Second); err != nil {
		return err
	}

	confirm, err := browser.WaitVisible(page, "button.confirmar", env.Timeout)
	if err != nil {
		return err
	}
	return browser.ClickRobust(confirm)
}

func (a *Assai) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	if err := a.selectStore(ctx, env, page, store); err != nil {
		if errors.Is(err, ErrNotFound) {
			a.closeModal(page)
		}
		return 0, err
	}

	if browser.AcceptCookies(page) {
		env.log().Debug("cookie banner accepted")
	}

	if _, err := browser.WaitVisible(page, assaiSlider, env.Timeout); err != nil {
		return 0, err
	}

	validity := env.Validity(env.Parser.FirstText(env.html(page), assaiValidity))
	dir := []string{slug.Path(store.State), slug.Path(store.Name), validity}
	env.SyncCookies(page)

	seen := make(map[string]struct{})
	total := a.journal(ctx, env, page, store, dir, validity, 1, seen)

	for j := 2; j <= assaiJournals; j++ {
		btn, err := browser.WaitVisible(page, fmt.Sprintf(`button:has-text("Jornal de Ofertas %d")`, j), 6*time.Second)
		if err != nil {
			env.log().Info("journal not available", "journal", j)
			break
		}
		if err := browser.ClickRobust(btn); err != nil {
			env.log().Warn("failed to switch journal", "journal", j, "error", err)
			break
		}
		if err := browser.Pause(ctx, 2*time.Second); err != nil {
			return total, err
		}
		if _, err := browser.WaitVisible(page, assaiSlider, env.Timeout); err != nil {
			env.log().Warn("slider missing after journal switch", "journal", j, "error", err)
			break
		}
		total += a.journal(ctx, env, page, store, dir, validity, j, seen)
	}

	if err := ctx.Err(); err != nil {
		return total, err
	}

	a.openModal(env, page)
	return total, nil
}

func (a *Assai) journal(ctx context.Context, env *Env, page playwright.Page, store models.Store, dir []string, validity string, journal int, seen map[string]struct{}) int {
	capture := func(ctx context.Context, s carousel.Slide) error {
		_, err := env.Download(ctx, Item{
			Store:    store,
			Dir:      dir,
			Journal:  s.Journal,
			Page:     s.Page,
			Sub:      1,
			Validity: validity,
		}, s.Ref, page.URL(), "jpg")
		return err
	}

	res := env.Traverse(ctx, carousel.NewSlickWidget(page), journal, carousel.DefaultMaxPages, seen, capture)
	return res.Captured
}
