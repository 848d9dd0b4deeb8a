// Package carousel walks paged flyer widgets (slick sliders, flipbooks)
// one slide at a time and hands every new slide to a capture function.
package carousel

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrNextUnavailable means the "next" control is missing or disabled.
	ErrNextUnavailable = errors.New("next control unavailable")
	// ErrNoChange means the widget did not move after clicking next.
	ErrNoChange = errors.New("slide did not change")
)

const DefaultMaxPages = 40

type StopReason string

const (
	StopNoReference     StopReason = "no_reference"
	StopRepeated        StopReason = "repeated"
	StopMaxPages        StopReason = "max_pages"
	StopNextUnavailable StopReason = "next_unavailable"
	StopNoChange        StopReason = "no_change"
	StopError           StopReason = "error"
	StopCanceled        StopReason = "canceled"
)

// Widget is the page-side half of a traversal.
type Widget interface {
	// Current returns a stable reference for the visible slide, usually an
	// image URL or a page key. Empty means nothing is showing.
	Current(ctx context.Context) (string, error)
	Next(ctx context.Context) error
	WaitChange(ctx context.Context, prev string) error
}

type Slide struct {
	Journal int
	Page    int
	Ref     string
}

type Capture func(ctx context.Context, s Slide) error

type Options struct {
	Journal  int
	MaxPages int
	Logger   *slog.Logger
	// Seen carries references across traversals of one store visit. Nil
	// gives the traversal its own set.
	Seen map[string]struct{}
}

type Result struct {
	Pages      int
	Captured   int
	Failed     int
	Iterations int
	Reason     StopReason
	Err        error
}

// Traverse captures slides until a reference repeats, the widget stops
// advancing, or MaxPages slides have been visited. A failed capture is
// logged and counted; it does not end the traversal. Traverse itself never
// fails: the outcome is described by Result.
func Traverse(ctx context.Context, w Widget, capture Capture, opts Options) Result {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("journal", opts.Journal)

	seen := opts.Seen
	if seen == nil {
		seen = make(map[string]struct{})
	}
	var res Result

	stop := func(reason StopReason, err error) Result {
		res.Reason = reason
		res.Err = err
		logger.Info("traversal finished",
			"reason", reason,
			"pages", res.Pages,
			"captured", res.Captured,
			"failed", res.Failed,
		)
		return res
	}

	for page := 1; ; page++ {
		res.Iterations++

		if err := ctx.Err(); err != nil {
			return stop(StopCanceled, err)
		}

		ref, err := w.Current(ctx)
		if err != nil {
			return stop(StopError, err)
		}
		if ref == "" {
			return stop(StopNoReference, nil)
		}
		if _, dup := seen[ref]; dup {
			return stop(StopRepeated, nil)
		}
		seen[ref] = struct{}{}
		res.Pages = page

		if err := capture(ctx, Slide{Journal: opts.Journal, Page: page, Ref: ref}); err != nil {
			res.Failed++
			logger.Warn("capture failed", "page", page, "ref", ref, "error", err)
		} else {
			res.Captured++
		}

		if page >= maxPages {
			return stop(StopMaxPages, nil)
		}

		if err := w.Next(ctx); err != nil {
			if errors.Is(err, ErrNextUnavailable) {
				return stop(StopNextUnavailable, nil)
			}
			return stop(StopError, err)
		}

		if err := w.WaitChange(ctx, ref); err != nil {
			if errors.Is(err, ErrNoChange) {
				return stop(StopNoChange, nil)
			}
			return stop(StopError, err)
		}
	}
}
