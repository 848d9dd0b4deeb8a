package storage

import (
	"context"
	"errors"

	"github.com/maltedev/encarte-scraper/internal/models"
)

// Sink is told about every artifact after it has been written to disk.
type Sink interface {
	Record(ctx context.Context, a *models.Artifact) error
}

// MultiSink fans out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, a *models.Artifact) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type SinkFunc func(ctx context.Context, a *models.Artifact) error

func (f SinkFunc) Record(ctx context.Context, a *models.Artifact) error {
	return f(ctx, a)
}
