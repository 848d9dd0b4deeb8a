package carousel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
)

// FlipbookWidget drives page-turning viewers (real3d flipbook, dflip and
// similar). When the viewer exposes page numbers through PageAttr on the
// visible PageSelector elements those form the reference; otherwise a
// synthetic page-<n> counter advanced by every successful Next is used.
type FlipbookWidget struct {
	Page         playwright.Page
	PageSelector string
	PageAttr     string
	NextSelector string
	Settle       time.Duration

	turned int
}

func (w *FlipbookWidget) Current(ctx context.Context) (string, error) {
	if ref := w.visiblePages(); ref != "" {
		return ref, nil
	}
	return fmt.Sprintf("page-%d", w.turned+1), nil
}

func (w *FlipbookWidget) visiblePages() string {
	if w.PageSelector == "" || w.PageAttr == "" {
		return ""
	}
	items, err := w.Page.Locator(w.PageSelector + ":visible").All()
	if err != nil {
		return ""
	}

	var pages []string
	for _, item := range items {
		v, err := item.GetAttribute(w.PageAttr)
		if err != nil || strings.TrimSpace(v) == "" {
			continue
		}
		pages = append(pages, strings.TrimSpace(v))
	}
	sort.Strings(pages)
	return strings.Join(pages, "-")
}

func (w *FlipbookWidget) Next(ctx context.Context) error {
	btn := w.Page.Locator(w.NextSelector).First()
	if n, err := btn.Count(); err != nil || n == 0 {
		return ErrNextUnavailable
	}
	if visible, err := btn.IsVisible(); err != nil || !visible {
		return ErrNextUnavailable
	}
	if enabled, err := btn.IsEnabled(); err != nil || !enabled {
		return ErrNextUnavailable
	}

	if err := browser.ClickRobust(btn); err != nil {
		return fmt.Errorf("flipbook next: %w", err)
	}
	w.turned++
	return nil
}

// WaitChange only waits: flipbooks animate and rarely expose a stable
// reference to poll.
func (w *FlipbookWidget) WaitChange(ctx context.Context, prev string) error {
	return browser.Pause(ctx, w.Settle)
}
