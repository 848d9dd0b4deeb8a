package retailers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/ratelimit"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

// VisitFunc scrapes one store and returns how many artifacts it saved.
type VisitFunc func(ctx context.Context, store models.Store) (int, error)

// FailFunc runs after a visit failed for any reason other than ErrNotFound,
// typically to dump debug output and reset the page.
type FailFunc func(store models.Store, err error)

// EachStore visits stores one after another. A failing store never stops the
// loop; only ctx cancellation does.
func EachStore(ctx context.Context, logger *slog.Logger, pacer ratelimit.Limiter, stores []models.Store, visit VisitFunc, onFail FailFunc) []models.StoreReport {
	if pacer == nil {
		pacer = ratelimit.Noop{}
	}
	reports := make([]models.StoreReport, 0, len(stores))

	for _, store := range stores {
		if err := pacer.Wait(ctx); err != nil {
			break
		}

		log := logger.With("store", store.Label())
		log.Info("processing store")

		started := time.Now()
		n, err := visit(ctx, store)
		report := models.StoreReport{
			Store:     store,
			Artifacts: n,
			StartedAt: started,
			Duration:  time.Since(started).Round(time.Millisecond).String(),
		}

		switch {
		case err == nil:
			log.Info("store done", "artifacts", n)
		case errors.Is(err, ErrNotFound):
			report.Error = err.Error()
			report.Skipped = true
			log.Warn("not found, skipping", "error", err)
		default:
			report.Error = err.Error()
			log.Error("store failed", "error", err, "artifacts", n)
			if onFail != nil && ctx.Err() == nil {
				onFail(store, err)
			}
		}
		reports = append(reports, report)

		if ctx.Err() != nil {
			break
		}
	}
	return reports
}

// MatchOption returns the option equal to target, ignoring case, accents and
// surrounding space, or else the first option containing it.
func MatchOption(options []string, target string) (string, bool) {
	want := slug.Fold(target)
	if want == "" {
		return "", false
	}
	for _, opt := range options {
		if slug.Fold(opt) == want {
			return strings.TrimSpace(opt), true
		}
	}
	for _, opt := range options {
		if strings.Contains(slug.Fold(opt), want) {
			return strings.TrimSpace(opt), true
		}
	}
	return "", false
}
