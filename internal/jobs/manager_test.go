package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/queue"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	running int
	maxSeen int
	release chan struct{}
	err     error
	runErr  string
}

func (f *fakeRunner) Run(ctx context.Context, retailer string) (*models.RunReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, retailer)
	f.running++
	if f.running > f.maxSeen {
		f.maxSeen = f.running
	}
	f.mu.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	report := models.NewRunReport("run-"+retailer, retailer)
	report.Stores = []models.StoreReport{{Artifacts: 4}}
	report.Error = f.runErr
	report.Finish(nil)
	return report, nil
}

func waitStatus(t *testing.T, m *Manager, id, status string) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = m.Get(id)
		return err == nil && job.Status == status
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestManagerRunsQueuedJobs(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	job, err := m.Submit("assai")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)

	done := waitStatus(t, m, job.ID, StatusCompleted)
	assert.Equal(t, 4, done.Artifacts)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Report)
	assert.Equal(t, "assai", done.Report.Retailer)
}

func TestManagerRunsOneJobAtATime(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	m := NewManager(runner, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	first, err := m.Submit("assai")
	require.NoError(t, err)
	second, err := m.Submit("cometa")
	require.NoError(t, err)

	waitStatus(t, m, first.ID, StatusRunning)
	queued, err := m.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, queued.Status)

	runner.release <- struct{}{}
	runner.release <- struct{}{}

	waitStatus(t, m, second.ID, StatusCompleted)
	assert.Equal(t, 1, runner.maxSeen)
	assert.Equal(t, []string{"assai", "cometa"}, runner.calls)
}

func TestManagerRejectsDuplicateWhileQueued(t *testing.T) {
	m := NewManager(&fakeRunner{}, slog.Default())

	_, err := m.Submit("assai")
	require.NoError(t, err)
	_, err = m.Submit("assai")
	assert.ErrorIs(t, err, queue.ErrDuplicate)
	assert.Equal(t, 1, m.Pending())
	assert.Len(t, m.List(), 1)
}

func TestManagerRecordsFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setup := NewManager(&fakeRunner{err: errors.New("no chromium")}, slog.Default())
	go setup.StartWorker(ctx)
	job, err := setup.Submit("assai")
	require.NoError(t, err)
	failed := waitStatus(t, setup, job.ID, StatusFailed)
	assert.Equal(t, "no chromium", failed.Error)
	assert.Nil(t, failed.Report)

	inRun := NewManager(&fakeRunner{runErr: "entry page down"}, slog.Default())
	go inRun.StartWorker(ctx)
	job, err = inRun.Submit("cometa")
	require.NoError(t, err)
	failed = waitStatus(t, inRun, job.ID, StatusFailed)
	assert.Equal(t, "entry page down", failed.Error)
	assert.Equal(t, 4, failed.Artifacts)
}

func TestManagerGetAndList(t *testing.T) {
	m := NewManager(&fakeRunner{}, slog.Default())

	_, err := m.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	a, err := m.Submit("assai")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := m.Submit("atacadao")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestWorkerStopsOnClose(t *testing.T) {
	m := NewManager(&fakeRunner{}, slog.Default())

	done := make(chan struct{})
	go func() {
		m.StartWorker(context.Background())
		close(done)
	}()

	require.NoError(t, m.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after Close")
	}

	_, err := m.Submit("assai")
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}
