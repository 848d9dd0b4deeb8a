package retailers

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/download"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

const (
	frangolandiaListing  = "a.jet-engine-listing-overlay-link"
	frangolandiaGallery  = "a.e-gallery-item.elementor-gallery-item"
	frangolandiaImages   = "img[src*='uploads/20']"
	frangolandiaValidity = "span.elementor-button-text"
)

// Frangolandia links one post per flyer from its listing page. Each post
// holds an Elementor gallery whose images are downloaded, falling back to
// an element screenshot.
type Frangolandia struct {
	URL    string
	Settle time.Duration
}

func NewFrangolandia() *Frangolandia {
	return &Frangolandia{
		URL:    "https://frangolandia.com/encartes/",
		Settle: 3 * time.Second,
	}
}

func (f *Frangolandia) Info() models.Retailer {
	return models.Retailer{Name: "Frangolândia", Slug: "Frangolandia", BaseURL: f.URL}
}

func (f *Frangolandia) Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error) {
	page, err := env.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	visit := func(ctx context.Context, store models.Store) (int, error) {
		return f.visit(ctx, env, page, store)
	}
	onFail := func(store models.Store, err error) {
		env.Debug(page, store)
	}

	return EachStore(ctx, env.log(), env.Pacer, []models.Store{{}}, visit, onFail), nil
}

func (f *Frangolandia) visit(ctx context.Context, env *Env, page playwright.Page, store models.Store) (int, error) {
	if err := env.Navigate(ctx, page, f.URL); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, f.Settle); err != nil {
		return 0, err
	}

	posts, err := env.Parser.ExtractLinks(env.html(page), page.URL(), frangolandiaListing, "href")
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		return 0, fmt.Errorf("flyer listing: %w", ErrNotFound)
	}
	env.log().Info("flyer posts found", "count", len(posts))

	seen := make(map[string]struct{})
	saved := 0
	for i, post := range posts {
		n, err := f.post(ctx, env, page, store, i+1, post, seen)
		saved += n
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			env.log().Warn("flyer post failed", "url", post, "error", err)
		}
	}
	return saved, nil
}

func (f *Frangolandia) post(ctx context.Context, env *Env, page playwright.Page, store models.Store, journal int, postURL string, seen map[string]struct{}) (int, error) {
	if err := env.Navigate(ctx, page, postURL); err != nil {
		return 0, err
	}
	if err := browser.Pause(ctx, f.Settle); err != nil {
		return 0, err
	}

	// Opening each gallery item makes the lazy images load their real src.
	items, _ := page.Locator(frangolandiaGallery).All()
	for _, item := range items {
		_ = item.ScrollIntoViewIfNeeded()
		if err := item.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
			env.log().Debug("gallery item click failed", "error", err)
			continue
		}
		_ = browser.Pause(ctx, time.Second)
		_ = page.Keyboard().Press("Escape")
	}

	html := env.html(page)
	validity := env.Validity(env.Parser.FirstText(html, frangolandiaValidity))
	dir := []string{slug.Path(lastSegment(postURL))}

	images, err := page.Locator(frangolandiaImages).All()
	if err != nil {
		return 0, err
	}
	if len(images) == 0 {
		env.log().Info("no flyer images in post", "url", postURL)
		return 0, nil
	}

	saved, pageNo := 0, 0
	for _, img := range images {
		src, _ := img.GetAttribute("src")
		src = download.NormalizeURL(src, page.URL())
		if src == "" {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		pageNo++

		item := Item{
			Store:    store,
			Dir:      dir,
			Journal:  journal,
			Page:     pageNo,
			Sub:      1,
			Validity: validity,
		}

		_, err := env.Download(ctx, item, src, page.URL(), "jpg")
		if err == nil {
			saved++
			continue
		}
		if ctx.Err() != nil {
			return saved, ctx.Err()
		}
		env.log().Warn("image download failed, taking element screenshot", "url", src, "error", err)

		_ = img.ScrollIntoViewIfNeeded()
		data, err := img.Screenshot()
		if err != nil {
			env.log().Warn("element screenshot failed", "url", src, "error", err)
			continue
		}
		item.Ref = src
		item.Kind = models.KindScreenshot
		item.Ext = "png"
		item.ContentType = "image/png"
		if _, err := env.Save(ctx, item, data); err != nil {
			env.log().Warn("failed to save screenshot", "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}
