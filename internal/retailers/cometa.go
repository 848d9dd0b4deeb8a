package retailers

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/carousel"
	"github.com/maltedev/encarte-scraper/internal/models"
)

const cometaFlipbooks = `div.real3dflipbook[style*="cursor: pointer"]`

// Cometa lists real3d flipbooks on one page. Pages are captured as viewport
// screenshots since the viewer renders to canvas.
type Cometa struct {
	URL        string
	LoadSettle time.Duration
	PageSettle time.Duration
	MaxPages   int
}

func NewCometa() *Cometa {
	return &Cometa{
		URL:        "https://cometasupermercados.com.br/ofertas/",
		LoadSettle: 9 * time.Second,
		PageSettle: 6 * time.Second,
		MaxPages:   20,
	}
}

func (c *Cometa) Info() models.Retailer {
	return models.Retailer{Name: "Cometa Supermercados", Slug: "Cometa-Supermercados", BaseURL: c.URL}
}

func (c *Cometa) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := env.Open(ctx, page, c.URL); err != nil {
		return nil, err
	}

	visit := func(ctx context.Context, store models.Store) (int, error) {
		return c.visit(ctx, env, page, store)
	}
	onFail := func(store models.Store, err error) {
		env.Debug(page, store)
	}

	return EachStore(ctx, env.log(), env.Pacer, []models.Store{{}}, visit, onFail), nil
}

func (c *Cometa) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	if err := browser.Pause(ctx, c.LoadSettle); err != nil {
		return 0, err
	}
	total, err := page.Locator(cometaFlipbooks).Count()
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, fmt.Errorf("flipbooks: %w", ErrNotFound)
	}
	env.log().Info("flipbooks found", "count", total)

	saved := 0
	for i := 0; i < total; i++ {
		n, err := c.flipbook(ctx, env, page, store, i)
		saved += n
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			env.log().Warn("flipbook failed", "flipbook", i+1, "error", err)
		}
	}
	return saved, nil
}

// flipbook reloads the listing before opening book i; element handles do
// not survive closing a book.
func (c *Cometa) flipbook(ctx context.Context, env *Env, page playwright.Page, store models.Store, i int) (int, error) {
	if err := env.Navigate(ctx, page, c.URL); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, c.LoadSettle); err != nil {
		return 0, err
	}

	books := page.Locator(cometaFlipbooks)
	if n, err := books.Count(); err != nil || n <= i {
		return 0, fmt.Errorf("flipbook %d disappeared", i+1)
	}
	if err := browser.ClickRobust(books.Nth(i)); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, c.LoadSettle); err != nil {
		return 0, err
	}

	widget := &carousel.FlipbookWidget{
		Page:         page,
		PageSelector: "div.flipbook-page",
		PageAttr:     "data-page",
		NextSelector: "span.flipbook-right-arrow",
		Settle:       c.PageSettle,
	}
	dir := []string{fmt.Sprintf("encarte_%d", i+1)}

	capture := func(ctx context.Context, s carousel.Slide) error {
		_, err := env.Screenshot(ctx, Item{
			Store:   store,
			Dir:     dir,
			Journal: s.Journal,
			Page:    s.Page,
			Sub:     1,
			Ref:     s.Ref,
		}, page)
		return err
	}

	res := env.Traverse(ctx, widget, i+1, c.MaxPages, nil, capture)
	return res.Captured, res.Err
}
