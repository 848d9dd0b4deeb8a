package carousel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/download"
)

// SlickWidget drives a slick.js slider whose slides are plain <img> tags.
// The slide reference is the normalised image URL.
type SlickWidget struct {
	Page          playwright.Page
	ImageSelector string
	NextSelector  string
	DisabledClass string

	Retries       int
	RetryPause    time.Duration
	ChangeTimeout time.Duration
	PollInterval  time.Duration
	Settle        time.Duration
}

func NewSlickWidget(page playwright.Page) *SlickWidget {
	return &SlickWidget{
		Page:          page,
		ImageSelector: "div.slick-current img, div.slick-active img",
		NextSelector:  "button.slick-next",
		DisabledClass: "slick-disabled",
		Retries:       5,
		RetryPause:    800 * time.Millisecond,
		ChangeTimeout: 15 * time.Second,
		PollInterval:  300 * time.Millisecond,
		Settle:        600 * time.Millisecond,
	}
}

func (w *SlickWidget) Current(ctx context.Context) (string, error) {
	for i := 0; i < w.Retries; i++ {
		if ref := w.currentOnce(5 * time.Second); ref != "" {
			return ref, nil
		}
		if err := browser.Pause(ctx, w.RetryPause); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (w *SlickWidget) currentOnce(timeout time.Duration) string {
	img := w.Page.Locator(w.ImageSelector).First()
	if err := img.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return ""
	}
	src, err := img.GetAttribute("src")
	if err != nil {
		return ""
	}
	return download.NormalizeURL(src, w.Page.URL())
}

func (w *SlickWidget) Next(ctx context.Context) error {
	btn := w.Page.Locator(w.NextSelector).First()
	if n, err := btn.Count(); err != nil || n == 0 {
		return ErrNextUnavailable
	}

	class, _ := btn.GetAttribute("class")
	aria, _ := btn.GetAttribute("aria-disabled")
	if strings.Contains(class, w.DisabledClass) || aria == "true" {
		return ErrNextUnavailable
	}

	if err := browser.ClickRobust(btn); err != nil {
		return fmt.Errorf("slick next: %w", err)
	}
	return nil
}

func (w *SlickWidget) WaitChange(ctx context.Context, prev string) error {
	deadline := time.Now().Add(w.ChangeTimeout)
	for time.Now().Before(deadline) {
		if ref := w.currentOnce(time.Second); ref != "" && ref != prev {
			return browser.Pause(ctx, w.Settle)
		}
		if err := browser.Pause(ctx, w.PollInterval); err != nil {
			return err
		}
	}
	return ErrNoChange
}
