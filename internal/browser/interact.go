package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Wrap maps playwright timeouts onto ErrTimeout and leaves other errors
// untouched.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Pause sleeps for d or until ctx is done.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ClickRobust scrolls the element into view and clicks it. A failed click is
// retried once after a short pause, then dispatched through JavaScript.
func ClickRobust(loc playwright.Locator) error {
	_ = loc.ScrollIntoViewIfNeeded()

	err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)})
	if err == nil {
		return nil
	}

	time.Sleep(600 * time.Millisecond)
	if err = loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err == nil {
		return nil
	}

	if _, jsErr := loc.Evaluate("el => el.click()", nil); jsErr != nil {
		return fmt.Errorf("click failed: %w", Wrap(err))
	}
	return nil
}

// WaitVisible waits for the first element matching selector.
func WaitVisible(page playwright.Page, selector string, timeout time.Duration) (playwright.Locator, error) {
	loc := page.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", selector, Wrap(err))
	}
	return loc, nil
}

// Exists reports whether selector matches at least one element right now.
func Exists(page playwright.Page, selector string) bool {
	n, err := page.Locator(selector).Count()
	return err == nil && n > 0
}

var cookieButtons = []string{
	`button:has-text("Aceitar Todos")`,
	`button:has-text("Aceitar todos")`,
	`button:has-text("Aceitar")`,
	"#onetrust-accept-btn-handler",
}

// AcceptCookies clicks the first visible consent button. It returns false
// when no banner was found.
func AcceptCookies(page playwright.Page) bool {
	for _, selector := range cookieButtons {
		loc := page.Locator(selector).First()
		visible, err := loc.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := ClickRobust(loc); err == nil {
			return true
		}
	}
	return false
}

// ScreenshotViewport scrolls to the top and captures the viewport.
func ScreenshotViewport(page playwright.Page) ([]byte, error) {
	if _, err := page.Evaluate("window.scrollTo(0, 0)"); err != nil {
		return nil, err
	}
	data, err := page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", Wrap(err))
	}
	return data, nil
}
