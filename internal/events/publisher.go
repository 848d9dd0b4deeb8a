// Package events turns saved artifacts and finished runs into catalog rows
// plus outbox events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/encarte-scraper/internal/database"
	"github.com/maltedev/encarte-scraper/internal/models"
)

type EventType string

const (
	EventTypeArtifactSaved EventType = "ARTIFACT_SAVED"
	EventTypeRunCompleted  EventType = "RUN_COMPLETED"

	source = "scraper"
)

type ArtifactSavedPayload struct {
	EventID      string              `json:"event_id"`
	EventType    string              `json:"event_type"`
	Timestamp    time.Time           `json:"timestamp"`
	RunID        string              `json:"run_id"`
	Retailer     string              `json:"retailer"`
	Store        models.Store        `json:"store"`
	Journal      int                 `json:"journal"`
	Page         int                 `json:"page"`
	Sub          int                 `json:"sub"`
	Kind         models.ArtifactKind `json:"kind"`
	RelPath      string              `json:"rel_path"`
	SourceRef    string              `json:"source_ref,omitempty"`
	Size         int64               `json:"size"`
	ContentType  string              `json:"content_type,omitempty"`
	ValiditySlug string              `json:"validity_slug"`
	Source       string              `json:"source"`
}

type RunCompletedPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Retailer   string    `json:"retailer"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Stores     int       `json:"stores"`
	Artifacts  int       `json:"artifacts"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	Source     string    `json:"source"`
}

// CatalogWriter is implemented by *database.Catalog.
type CatalogWriter interface {
	StartRun(ctx context.Context, run *models.RunReport) error
	SaveArtifact(ctx context.Context, a *models.Artifact, event *database.OutboxEvent) error
	FinishRun(ctx context.Context, run *models.RunReport, event *database.OutboxEvent) error
}

// Publisher records catalog rows and their events through the outbox. It is
// a storage.Sink for artifacts.
type Publisher struct {
	catalog CatalogWriter
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublisher(catalog CatalogWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		catalog: catalog,
		logger:  logger.With("component", "event_publisher"),
		now:     time.Now,
	}
}

func (p *Publisher) RunStarted(ctx context.Context, run *models.RunReport) error {
	if err := p.catalog.StartRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// Record stores a and emits ARTIFACT_SAVED.
func (p *Publisher) Record(ctx context.Context, a *models.Artifact) error {
	payload := &ArtifactSavedPayload{
		EventID:      uuid.New().String(),
		EventType:    string(EventTypeArtifactSaved),
		Timestamp:    p.now().UTC(),
		RunID:        a.RunID,
		Retailer:     a.Retailer,
		Store:        a.Store,
		Journal:      a.Journal,
		Page:         a.Page,
		Sub:          a.Sub,
		Kind:         a.Kind,
		RelPath:      a.RelPath,
		SourceRef:    a.SourceRef,
		Size:         a.Size,
		ContentType:  a.ContentType,
		ValiditySlug: a.ValiditySlug,
		Source:       source,
	}

	event, err := outboxEvent("artifact", a.RelPath, EventTypeArtifactSaved, payload)
	if err != nil {
		return err
	}
	if err := p.catalog.SaveArtifact(ctx, a, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"rel_path", a.RelPath)
	return nil
}

// RunCompleted closes the run row and emits RUN_COMPLETED.
func (p *Publisher) RunCompleted(ctx context.Context, run *models.RunReport) error {
	payload := &RunCompletedPayload{
		EventID:    uuid.New().String(),
		EventType:  string(EventTypeRunCompleted),
		Timestamp:  p.now().UTC(),
		RunID:      run.ID,
		Retailer:   run.Retailer,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Stores:     len(run.Stores),
		Artifacts:  run.Artifacts(),
		Failed:     run.Failed(),
		Error:      run.Error,
		Source:     source,
	}

	event, err := outboxEvent("run", run.ID, EventTypeRunCompleted, payload)
	if err != nil {
		return err
	}
	if err := p.catalog.FinishRun(ctx, run, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", run.ID,
		"artifacts", payload.Artifacts)
	return nil
}

func outboxEvent(aggregateType, aggregateID string, eventType EventType, payload any) (*database.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &database.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(eventType),
		Payload:       data,
	}, nil
}
