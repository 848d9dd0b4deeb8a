package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/encarte-scraper/internal/models"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// CatalogRepository keeps one row per run and per saved artifact. The
// WithTx methods are meant to share a transaction with the outbox insert.
type CatalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) StartRunWithTx(ctx context.Context, tx pgx.Tx, run *models.RunReport) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO flyer_run (id, retailer, status, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		run.ID, run.Retailer, RunStatusRunning, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *CatalogRepository) FinishRunWithTx(ctx context.Context, tx pgx.Tx, run *models.RunReport) error {
	status := RunStatusCompleted
	var runErr *string
	if run.Error != "" {
		status = RunStatusFailed
		runErr = &run.Error
	}

	result, err := tx.Exec(ctx, `
		UPDATE flyer_run
		SET status = $1, artifacts = $2, failed = $3, error = $4, finished_at = $5
		WHERE id = $6`,
		status, run.Artifacts(), run.Failed(), runErr, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// SaveArtifactWithTx inserts a, replacing an earlier row for the same
// relative path.
func (r *CatalogRepository) SaveArtifactWithTx(ctx context.Context, tx pgx.Tx, a *models.Artifact) error {
	store, err := json.Marshal(a.Store)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO flyer_artifact (
			id, run_id, retailer, store, journal, page, sub,
			source_ref, kind, rel_path, size_bytes, content_type,
			validity_slug, saved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (rel_path) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			source_ref = EXCLUDED.source_ref,
			size_bytes = EXCLUDED.size_bytes,
			content_type = EXCLUDED.content_type,
			saved_at = EXCLUDED.saved_at`,
		uuid.New(), a.RunID, a.Retailer, store, a.Journal, a.Page, a.Sub,
		a.SourceRef, string(a.Kind), a.RelPath, a.Size, a.ContentType,
		a.ValiditySlug, a.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artifact %s: %w", a.RelPath, err)
	}
	return nil
}

func (r *CatalogRepository) ListArtifacts(ctx context.Context, runID string) ([]*models.Artifact, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT run_id, retailer, store, journal, page, sub, source_ref, kind,
		       rel_path, size_bytes, content_type, validity_slug, saved_at
		FROM flyer_artifact
		WHERE run_id = $1
		ORDER BY rel_path`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Artifact
	for rows.Next() {
		a := &models.Artifact{}
		var store []byte
		var kind string
		if err := rows.Scan(
			&a.RunID, &a.Retailer, &store, &a.Journal, &a.Page, &a.Sub, &a.SourceRef, &kind,
			&a.RelPath, &a.Size, &a.ContentType, &a.ValiditySlug, &a.SavedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.Kind = models.ArtifactKind(kind)
		if err := json.Unmarshal(store, &a.Store); err != nil {
			return nil, fmt.Errorf("failed to decode store of %s: %w", a.RelPath, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// RunStatus returns the stored status of a run.
func (r *CatalogRepository) RunStatus(ctx context.Context, runID string) (string, error) {
	var status string
	err := r.db.pool.QueryRow(ctx, `SELECT status FROM flyer_run WHERE id = $1`, runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}
	return status, nil
}

// Catalog writes catalog rows and their outbox events in one transaction.
type Catalog struct {
	db     *DB
	runs   *CatalogRepository
	outbox *OutboxRepository
}

func NewCatalog(db *DB, stream string) *Catalog {
	return &Catalog{
		db:     db,
		runs:   NewCatalogRepository(db),
		outbox: NewOutboxRepository(db, stream),
	}
}

func (c *Catalog) Outbox() *OutboxRepository {
	return c.outbox
}

func (c *Catalog) Repository() *CatalogRepository {
	return c.runs
}

func (c *Catalog) StartRun(ctx context.Context, run *models.RunReport) error {
	return c.db.Transaction(ctx, func(tx pgx.Tx) error {
		return c.runs.StartRunWithTx(ctx, tx, run)
	})
}

func (c *Catalog) SaveArtifact(ctx context.Context, a *models.Artifact, event *OutboxEvent) error {
	return c.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := c.runs.SaveArtifactWithTx(ctx, tx, a); err != nil {
			return err
		}
		return c.outbox.InsertWithTx(ctx, tx, event)
	})
}

func (c *Catalog) FinishRun(ctx context.Context, run *models.RunReport, event *OutboxEvent) error {
	return c.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := c.runs.FinishRunWithTx(ctx, tx, run); err != nil {
			return err
		}
		return c.outbox.InsertWithTx(ctx, tx, event)
	})
}
