// Package ratelimit spaces out store visits so retailers see a human pace.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// Pacer waits a random delay in [min, max] between consecutive actions.
// The first Wait returns immediately.
type Pacer struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	jitter     func(n int64) int64
	now        func() time.Time
}

func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   rand.Int63n,
		now:      time.Now,
	}
}

func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastAction.IsZero() {
		if wait := p.nextDelay() - p.now().Sub(p.lastAction); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	p.lastAction = p.now()
	return nil
}

func (p *Pacer) SetDelay(min, max time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if max < min {
		max = min
	}
	p.minDelay = min
	p.maxDelay = max
}

func (p *Pacer) nextDelay() time.Duration {
	delta := p.maxDelay - p.minDelay
	if delta <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.jitter(int64(delta)))
}

// Noop never waits. Used by tests and single-store retailers.
type Noop struct{}

func (Noop) Wait(ctx context.Context) error { return ctx.Err() }

func (Noop) SetDelay(min, max time.Duration) {}
