// Package jobs queues run requests from the API and executes them one at a
// time.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/queue"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Runner is implemented by *runner.Runner.
type Runner interface {
	Run(ctx context.Context, retailer string) (*models.RunReport, error)
}

type Job struct {
	ID          string            `json:"id"`
	Retailer    string            `json:"retailer"`
	Status      string            `json:"status"`
	Artifacts   int               `json:"artifacts"`
	Failed      int               `json:"failed"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Report      *models.RunReport `json:"report,omitempty"`
}

type Manager struct {
	runner Runner
	queue  queue.Queue
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager(runner Runner, logger *slog.Logger) *Manager {
	return &Manager{
		runner: runner,
		queue:  queue.NewInMemoryQueue(),
		logger: logger.With("component", "job_manager"),
		jobs:   make(map[string]*Job),
	}
}

// Submit queues a run for retailer. queue.ErrDuplicate is returned while
// the same retailer is still waiting.
func (m *Manager) Submit(retailer string) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Retailer:  retailer,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.queue.Push(&queue.Task{ID: job.ID, Retailer: retailer, CreatedAt: job.CreatedAt}); err != nil {
		return nil, err
	}
	m.jobs[job.ID] = job

	m.logger.Info("job queued", "id", job.ID, "retailer", retailer)
	copied := *job
	return &copied, nil
}

func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// List returns every known job, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		copied.Report = nil
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *Manager) Pending() int {
	return m.queue.Size()
}

// StartWorker runs queued jobs until ctx is done or Close is called. Only
// one job runs at a time since each holds a browser.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			m.logger.Info("job worker stopping", "reason", err)
			return
		}
		m.process(ctx, task)
	}
}

func (m *Manager) Close() error {
	return m.queue.Close()
}

func (m *Manager) process(ctx context.Context, task *queue.Task) {
	m.update(task.ID, func(j *Job) {
		now := time.Now()
		j.Status = StatusRunning
		j.StartedAt = &now
	})
	m.logger.Info("processing job", "id", task.ID, "retailer", task.Retailer)

	report, err := m.runner.Run(ctx, task.Retailer)

	m.update(task.ID, func(j *Job) {
		now := time.Now()
		j.CompletedAt = &now
		switch {
		case err != nil:
			j.Status = StatusFailed
			j.Error = err.Error()
		case report.Error != "":
			j.Status = StatusFailed
			j.Error = report.Error
		default:
			j.Status = StatusCompleted
		}
		if report != nil {
			j.Report = report
			j.Artifacts = report.Artifacts()
			j.Failed = report.Failed()
		}
	})

	if err != nil {
		m.logger.Error("job failed", "id", task.ID, "error", err)
		return
	}
	m.logger.Info("job completed", "id", task.ID, "artifacts", report.Artifacts())
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}
