package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/encarte-scraper/internal/models"
)

func TestCatalogRepository_Integration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	catalog := NewCatalogRepository(db)
	outbox := NewOutboxRepository(db, "")

	run := models.NewRunReport("run-catalog-1", "Assai")
	require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
		return catalog.StartRunWithTx(ctx, tx, run)
	}))

	status, err := catalog.RunStatus(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, status)

	artifact := &models.Artifact{
		RunID:        run.ID,
		Retailer:     "Assai",
		Store:        models.Store{State: "Ceará", Name: "Assaí Bezerra M (Fortaleza)"},
		Journal:      1,
		Page:         1,
		Sub:          1,
		SourceRef:    "https://cdn.assai.com.br/p1.jpg",
		Kind:         models.KindImage,
		RelPath:      "Assai/Ceara/Assai_Bezerra_M_Fortaleza/sem_data/p1.jpg",
		Size:         1024,
		ContentType:  "image/jpeg",
		ValiditySlug: "sem_data",
		SavedAt:      time.Now().UTC(),
	}

	t.Run("artifact and event commit together", func(t *testing.T) {
		require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
			if err := catalog.SaveArtifactWithTx(ctx, tx, artifact); err != nil {
				return err
			}
			return outbox.InsertWithTx(ctx, tx, &OutboxEvent{
				AggregateType: "artifact",
				AggregateID:   artifact.RelPath,
				EventType:     "ARTIFACT_SAVED",
				Payload:       json.RawMessage(`{}`),
			})
		}))

		listed, err := catalog.ListArtifacts(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, artifact.Store, listed[0].Store)
		assert.Equal(t, models.KindImage, listed[0].Kind)
	})

	t.Run("same path is replaced", func(t *testing.T) {
		again := *artifact
		again.Size = 2048
		require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
			return catalog.SaveArtifactWithTx(ctx, tx, &again)
		}))

		listed, err := catalog.ListArtifacts(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, int64(2048), listed[0].Size)
	})

	t.Run("finish run", func(t *testing.T) {
		run.Stores = append(run.Stores, models.StoreReport{Artifacts: 1})
		run.Finish(nil)
		require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
			return catalog.FinishRunWithTx(ctx, tx, run)
		}))

		status, err := catalog.RunStatus(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusCompleted, status)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := catalog.RunStatus(ctx, "missing")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}
