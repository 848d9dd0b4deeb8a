// Package runner wires one retailer run: browser, downloader, output layout,
// sinks and the final report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/config"
	"github.com/maltedev/encarte-scraper/internal/download"
	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/parser"
	"github.com/maltedev/encarte-scraper/internal/ratelimit"
	"github.com/maltedev/encarte-scraper/internal/retailers"
	"github.com/maltedev/encarte-scraper/internal/storage"
)

// RunHooks is told when a run starts and ends. *events.Publisher is one.
type RunHooks interface {
	RunStarted(ctx context.Context, run *models.RunReport) error
	RunCompleted(ctx context.Context, run *models.RunReport) error
}

type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	sinks  []storage.Sink
	hooks  RunHooks

	launch func(*browser.Options, *slog.Logger) (*browser.Browser, error)
	lookup func(string) (retailers.Retailer, error)
	newID  func() string
}

type Option func(*Runner)

// WithSink adds a sink next to the per-retailer manifest.
func WithSink(s storage.Sink) Option {
	return func(r *Runner) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

func WithHooks(h RunHooks) Option {
	return func(r *Runner) { r.hooks = h }
}

func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: logger.With("component", "runner"),
		launch: browser.New,
		lookup: retailers.Get,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scrapes one retailer. The error is only set when the run could not
// start; failures inside the run end up in the report.
func (r *Runner) Run(ctx context.Context, name string) (*models.RunReport, error) {
	retailer, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	info := retailer.Info()

	layout, err := storage.NewLayout(r.cfg.Output.Root)
	if err != nil {
		return nil, err
	}
	dir, err := layout.Ensure(info.Slug)
	if err != nil {
		return nil, err
	}
	manifest, err := storage.OpenManifest(dir)
	if err != nil {
		return nil, err
	}

	report := models.NewRunReport(r.newID(), info.Slug)
	log := r.logger.With("retailer", info.Slug, "run_id", report.ID)

	fetcher, err := download.NewFetcher(downloadOptions(r.cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create downloader: %w", err)
	}

	b, err := r.launch(BrowserOptions(r.cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	if b != nil {
		defer func() {
			if err := b.Close(); err != nil {
				log.Warn("failed to close browser", "error", err)
			}
		}()
	}

	if r.hooks != nil {
		if err := r.hooks.RunStarted(ctx, report); err != nil {
			log.Warn("run start not recorded", "error", err)
		}
	}

	env := &retailers.Env{
		RunID:      report.ID,
		Retailer:   info,
		Browser:    b,
		Fetcher:    fetcher,
		Layout:     layout,
		Sink:       storage.MultiSink(append([]storage.Sink{manifest}, r.sinks...)),
		Parser:     parser.NewFlyerParser(),
		Pacer:      ratelimit.NewPacer(r.cfg.Scraper.StoreDelayMin, r.cfg.Scraper.StoreDelayMax),
		Logger:     log,
		MaxPages:   r.cfg.Scraper.MaxPages,
		SlugMaxLen: r.cfg.Scraper.SlugMaxLen,
		NavRetries: r.cfg.Scraper.NavRetries,
		Timeout:    r.cfg.Browser.Timeout,
	}

	log.Info("run started", "output", dir)

	stores, err := retailer.Scrape(ctx, env)
	report.Stores = append(report.Stores, stores...)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	report.Finish(err)

	log.Info("run finished",
		"stores", len(report.Stores),
		"artifacts", report.Artifacts(),
		"failed", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Second),
		"error", report.Error)

	if r.hooks != nil {
		if err := r.hooks.RunCompleted(context.WithoutCancel(ctx), report); err != nil {
			log.Warn("run completion not recorded", "error", err)
		}
	}

	return report, nil
}

// RunAll runs retailers one after another and stops early when ctx ends.
func (r *Runner) RunAll(ctx context.Context, names []string) ([]*models.RunReport, error) {
	var reports []*models.RunReport
	var errs []error

	for _, name := range names {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := r.Run(ctx, name)
		if err != nil {
			r.logger.Error("run could not start", "retailer", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// BrowserOptions maps the browser and scraper config onto launch options.
func BrowserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	opts.UserAgent = cfg.Scraper.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	return opts
}

func downloadOptions(cfg *config.Config) download.Options {
	return download.Options{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		Timeout:        cfg.Download.Timeout,
		Retries:        cfg.Download.Retries,
		RetryDelay:     cfg.Download.RetryDelay,
	}
}
