package retailers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/slug"
	"github.com/maltedev/encarte-scraper/internal/storage"
)

const (
	gbarbosaCovers   = "div.df-book-cover"
	gbarbosaMore     = "div.df-ui-btn.df-ui-more"
	gbarbosaDownload = "a.df-ui-download"
)

// GBarbosa publishes dflip books per state. The PDFs are only reachable
// through the viewer's download button, so they are captured from the
// browser download event.
type GBarbosa struct {
	URL    string
	Stores []models.Store
	Settle time.Duration
}

func NewGBarbosa() *GBarbosa {
	return &GBarbosa{
		URL:    "https://blog.gbarbosa.com.br/ofertas/",
		Stores: []models.Store{{State: "AL"}, {State: "SE"}},
		Settle: 3 * time.Second,
	}
}

func (g *GBarbosa) Info() models.Retailer {
	return models.Retailer{Name: "G-Barbosa", Slug: "G-Barbosa", BaseURL: g.URL}
}

func (g *GBarbosa) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	visit := func(ctx context.Context, store models.Store) (int, error) {
		return g.visit(ctx, env, page, store)
	}
	onFail := func(store models.Store, err error) {
		env.Debug(page, store)
	}

	return EachStore(ctx, env.log(), env.Pacer, g.Stores, visit, onFail), nil
}

// openState loads the listing and picks the state tab. The listing is
// reloaded from scratch every time; closing a book leaves the page in an
// inconsistent state.
func (g *GBarbosa) openState(ctx context.Context, env *Env, page playwright.Page, uf string) error {
	if err := env.Navigate(ctx, page, g.URL); err != nil {
		return err
	}
	if err := browser.Pause(ctx, g.Settle); err != nil {
		return err
	}

	btn, err := browser.WaitVisible(page, fmt.Sprintf(`xpath=//button[normalize-space()="%s"]`, uf), 25*time.Second)
	if err != nil {
		return fmt.Errorf("state %s: %w", uf, ErrNotFound)
	}
	if err := browser.ClickRobust(btn); err != nil {
		return err
	}
	return browser.Pause(ctx, g.Settle)
}

func (g *GBarbosa) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	uf := strings.ToUpper(strings.TrimSpace(store.State))
	if err := g.openState(ctx, env, page, uf); err != nil {
		return 0, err
	}

	saved := 0
	for index := 0; ; index++ {
		total, err := page.Locator(gbarbosaCovers).Count()
		if err != nil {
			return saved, err
		}
		if index >= total {
			env.log().Info("no more books for state", "state", uf, "books", total)
			break
		}

		env.log().Info("opening book", "book", index+1, "total", total)
		if err := g.book(ctx, env, page, store, uf, index); err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			env.log().Warn("book failed", "book", index+1, "error", err)
		} else {
			saved++
		}

		if err := g.openState(ctx, env, page, uf); err != nil {
			return saved, fmt.Errorf("reopening state %s: %w", uf, err)
		}
	}
	return saved, nil
}

func (g *GBarbosa) book(ctx context.Context, env *Env, page playwright.Page, store models.Store, uf string, index int) error {
	if err := browser.ClickRobust(page.Locator(gbarbosaCovers).Nth(index)); err != nil {
		return err
	}
	if err := browser.Pause(ctx, 2*time.Second); err != nil {
		return err
	}

	more, err := browser.WaitVisible(page, gbarbosaMore, 25*time.Second)
	if err != nil {
		return err
	}
	if err := browser.ClickRobust(more); err != nil {
		return err
	}
	if err := browser.Pause(ctx, 1500*time.Millisecond); err != nil {
		return err
	}

	link, err := browser.WaitVisible(page, gbarbosaDownload, 25*time.Second)
	if err != nil {
		return err
	}

	dl, err := page.ExpectDownload(func() error {
		return link.Click()
	}, playwright.PageExpectDownloadOptions{Timeout: playwright.Float(120000)})
	if err != nil {
		return fmt.Errorf("waiting for download: %w", browser.Wrap(err))
	}

	item := Item{
		Store:       store,
		Dir:         []string{uf},
		Journal:     index + 1,
		Page:        1,
		Sub:         1,
		Ref:         dl.URL(),
		Kind:        models.KindPDF,
		ContentType: "application/pdf",
	}

	dir, err := env.dir(item)
	if err != nil {
		return err
	}
	path := storage.UniquePath(dir, downloadName(dl.SuggestedFilename(), index+1))
	if err := dl.SaveAs(path); err != nil {
		return fmt.Errorf("saving download: %w", err)
	}

	_, err = env.RecordFile(ctx, item, path)
	return err
}

// downloadName keeps the server's file name stem and forces a .pdf
// extension.
func downloadName(suggested string, n int) string {
	stem := strings.TrimSuffix(suggested, filepath.Ext(suggested))
	if strings.TrimSpace(stem) == "" {
		return fmt.Sprintf("encarte_%d.pdf", n)
	}
	return slug.Sanitize(stem, slug.DefaultMaxLen) + ".pdf"
}
