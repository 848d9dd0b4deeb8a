package retailers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/carousel"
	"github.com/maltedev/encarte-scraper/internal/download"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/parser"
	"github.com/maltedev/encarte-scraper/internal/ratelimit"
	"github.com/maltedev/encarte-scraper/internal/slug"
	"github.com/maltedev/encarte-scraper/internal/storage"
)

// Env is everything a retailer needs for one run.
type Env struct {
	RunID    string
	Retailer models.Retailer

	Browser *browser.Browser
	Fetcher *download.Fetcher
	Layout  *storage.Layout
	Sink    storage.Sink
	Parser  *parser.FlyerParser
	Pacer   ratelimit.Limiter
	Logger  *slog.Logger

	MaxPages   int
	SlugMaxLen int
	NavRetries int
	Timeout    time.Duration

	Now func() time.Time
}

// Item describes one file about to be saved below the retailer directory.
type Item struct {
	Store       models.Store
	Dir         []string
	Journal     int
	Page        int
	Sub         int
	Ref         string
	Kind        models.ArtifactKind
	Ext         string
	ContentType string
	Validity    string
}

// withDefaults numbers a lone file as sub-page 1.
func (item Item) withDefaults() Item {
	if item.Sub == 0 {
		item.Sub = 1
	}
	return item
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Validity turns scraped validity text into a directory name.
func (e *Env) Validity(text string) string {
	return slug.Sanitize(text, e.SlugMaxLen)
}

func (e *Env) dir(item Item) (string, error) {
	parts := append([]string{e.Retailer.Slug}, item.Dir...)
	return e.Layout.Ensure(parts...)
}

func (e *Env) fileName(item Item) string {
	return slug.FileName("encarte", item.Journal, item.Page, item.Sub, e.now(), item.Ext)
}

// Save writes data and records the artifact with the sink. A sink failure is
// logged; the file on disk is what counts.
func (e *Env) Save(ctx context.Context, item Item, data []byte) (*models.Artifact, error) {
	item = item.withDefaults()
	dir, err := e.dir(item)
	if err != nil {
		return nil, err
	}

	path := storage.UniquePath(dir, e.fileName(item))
	if err := storage.WriteFile(path, data); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return e.record(ctx, item, path, int64(len(data)))
}

// RecordFile registers a file that something else (a browser download)
// already wrote inside the layout.
func (e *Env) RecordFile(ctx context.Context, item Item, path string) (*models.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return e.record(ctx, item.withDefaults(), path, info.Size())
}

func (e *Env) record(ctx context.Context, item Item, path string, size int64) (*models.Artifact, error) {
	rel, err := e.Layout.Rel(path)
	if err != nil {
		return nil, err
	}

	a := &models.Artifact{
		RunID:        e.RunID,
		Retailer:     e.Retailer.Slug,
		Store:        item.Store,
		Journal:      item.Journal,
		Page:         item.Page,
		Sub:          item.Sub,
		SourceRef:    item.Ref,
		Kind:         item.Kind,
		Path:         path,
		RelPath:      rel,
		Size:         size,
		ContentType:  item.ContentType,
		ValiditySlug: item.Validity,
		SavedAt:      e.now().UTC(),
	}

	e.log().Info("saved", "path", rel, "kind", a.Kind, "bytes", size)

	if e.Sink != nil {
		if err := e.Sink.Record(ctx, a); err != nil {
			e.log().Warn("failed to record artifact", "path", rel, "error", err)
		}
	}
	return a, nil
}

// Download fetches src and saves it. defaultExt is used when neither the URL
// nor the content type reveal the file type.
func (e *Env) Download(ctx context.Context, item Item, src, referer, defaultExt string) (*models.Artifact, error) {
	payload, err := e.Fetcher.Fetch(ctx, src, referer)
	if err != nil {
		return nil, err
	}

	item.Ref = src
	item.ContentType = payload.ContentType
	item.Ext = payload.Ext()
	item.Kind = payload.Kind()
	if item.Ext == "bin" && defaultExt != "" {
		item.Ext = defaultExt
		if defaultExt == "pdf" {
			item.Kind = models.KindPDF
		}
	}

	return e.Save(ctx, item, payload.Body)
}

// Screenshot saves the current viewport of page.
func (e *Env) Screenshot(ctx context.Context, item Item, page playwright.Page) (*models.Artifact, error) {
	data, err := browser.ScreenshotViewport(page)
	if err != nil {
		return nil, err
	}
	item.Kind = models.KindScreenshot
	item.Ext = "png"
	item.ContentType = "image/png"
	return e.Save(ctx, item, data)
}

// SyncCookies copies the page's cookies into the download client.
func (e *Env) SyncCookies(page playwright.Page) {
	cookies, err := e.Browser.HTTPCookies(page.URL())
	if err != nil {
		e.log().Warn("could not read browser cookies", "error", err)
		return
	}
	e.Fetcher.LoadCookies(cookies)
}

// Debug dumps a screenshot and the HTML of page under <Retailer>/debug.
func (e *Env) Debug(page playwright.Page, store models.Store) {
	dir, err := e.Layout.Dir(e.Retailer.Slug, "debug")
	if err != nil {
		e.log().Error("debug dir unavailable", "error", err)
		return
	}
	e.Browser.DumpDebug(page, dir, slug.Path(store.Label()))
}

func (e *Env) Navigate(ctx context.Context, page playwright.Page, target string) error {
	return e.Browser.NavigateWithRetry(ctx, page, target, e.NavRetries)
}

// Open navigates to a retailer's entry page. When the page cannot be
// reached a debug dump is written before any store is visited.
func (e *Env) Open(ctx context.Context, page playwright.Page, target string) error {
	if err := e.Navigate(ctx, page, target); err != nil {
		e.Debug(page, models.Store{})
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	return nil
}

// Traverse walks w with the env's page cap. A non-nil seen set is shared
// with earlier traversals, so a slide already captured ends this one.
func (e *Env) Traverse(ctx context.Context, w carousel.Widget, journal, maxPages int, seen map[string]struct{}, capture carousel.Capture) carousel.Result {
	if maxPages <= 0 || (e.MaxPages > 0 && maxPages > e.MaxPages) {
		maxPages = e.MaxPages
	}
	return carousel.Traverse(ctx, w, capture, carousel.Options{
		Journal:  journal,
		MaxPages: maxPages,
		Logger:   e.log(),
		Seen:     seen,
	})
}

func (e *Env) html(page playwright.Page) string {
	html, err := page.Content()
	if err != nil {
		e.log().Warn("could not read page content", "error", err)
		return ""
	}
	return html
}

// selectMatching picks the option of the select at selector that
// MatchOption chooses for target. Options that load asynchronously are
// polled until timeout. ErrNotFound when none matches.
func selectMatching(ctx context.Context, page playwright.Page, selector, target string, timeout time.Duration) (string, error) {
	sel := page.Locator(selector).First()
	if err := sel.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("select %s: %w", selector, browser.Wrap(err))
	}

	match, err := waitOption(ctx, sel.Locator("option").AllInnerTexts, target, timeout)
	if err != nil {
		return "", fmt.Errorf("option %q in %s: %w", target, selector, err)
	}
	if _, err := sel.SelectOption(playwright.SelectOptionValues{Labels: &[]string{match}}); err != nil {
		return "", fmt.Errorf("selecting %q: %w", match, browser.Wrap(err))
	}
	return match, nil
}

const optionPoll = 500 * time.Millisecond

// waitOption polls the option texts until one matches target, the timeout
// passes or ctx ends.
func waitOption(ctx context.Context, options func() ([]string, error), target string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		texts, err := options()
		if err != nil {
			return "", fmt.Errorf("reading options: %w", err)
		}
		if match, ok := MatchOption(texts, target); ok {
			return match, nil
		}
		if time.Now().After(deadline) {
			return "", ErrNotFound
		}
		if err := browser.Pause(ctx, optionPoll); err != nil {
			return "", err
		}
	}
}

// lastSegment returns the final path element of a URL, e.g. the post slug
// of https://frangolandia.com/encartes/semana-10/.
func lastSegment(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		rawURL = u.Path
	}
	trimmed := strings.TrimRight(rawURL, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}
