package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/encarte-scraper/internal/jobs"
	"github.com/maltedev/encarte-scraper/internal/models"
)

type idleRunner struct{}

func (idleRunner) Run(ctx context.Context, retailer string) (*models.RunReport, error) {
	return models.NewRunReport("x", retailer), nil
}

func newServer(t *testing.T, opts ...Option) (*httptest.Server, *jobs.Manager) {
	t.Helper()
	manager := jobs.NewManager(idleRunner{}, slog.Default())
	srv := httptest.NewServer(NewRouter(NewHandlers(manager, slog.Default(), opts...)))
	t.Cleanup(srv.Close)
	return srv, manager
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func postRun(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	t.Run("without catalog", func(t *testing.T) {
		srv, _ := newServer(t)
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		decode(t, resp, &body)
		assert.Equal(t, "ok", body["status"])
		assert.NotContains(t, body, "outbox")
	})

	t.Run("dead letters make it unhealthy", func(t *testing.T) {
		srv, _ := newServer(t, WithBacklog(func(context.Context) (int64, int64, error) { return 3, 500, nil }))
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body map[string]any
		decode(t, resp, &body)
		assert.Equal(t, "error", body["status"])
	})

	t.Run("catalog unreachable is degraded", func(t *testing.T) {
		srv, _ := newServer(t, WithBacklog(func(context.Context) (int64, int64, error) { return 0, 0, errors.New("down") }))
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		decode(t, resp, &body)
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestListRetailers(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/retailers")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body []RetailerResponse
	decode(t, resp, &body)
	require.Len(t, body, 7)
	assert.Equal(t, "assai", body[0].Key)
	assert.Equal(t, "Assai", body[0].Slug)
}

func TestCreateAndGetRun(t *testing.T) {
	srv, _ := newServer(t)

	resp := postRun(t, srv, `{"retailer":"G-Barbosa"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created CreateRunResponse
	decode(t, resp, &created)
	assert.NotEmpty(t, created.RunID)
	assert.Equal(t, "gbarbosa", created.Retailer)
	assert.Equal(t, jobs.StatusQueued, created.Status)

	resp, err := http.Get(srv.URL + "/api/v1/runs/" + created.RunID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var job jobs.Job
	decode(t, resp, &job)
	assert.Equal(t, created.RunID, job.ID)

	resp, err = http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	var list []jobs.Job
	decode(t, resp, &list)
	assert.Len(t, list, 1)
}

func TestCreateRunErrors(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing retailer", `{}`, http.StatusBadRequest},
		{"unknown retailer", `{"retailer":"carrefour"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRun(t, srv, tt.body)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("duplicate while queued", func(t *testing.T) {
		first := postRun(t, srv, `{"retailer":"assai"}`)
		first.Body.Close()
		assert.Equal(t, http.StatusAccepted, first.StatusCode)

		second := postRun(t, srv, `{"retailer":"Assaí"}`)
		second.Body.Close()
		assert.Equal(t, http.StatusConflict, second.StatusCode)
	})
}

func TestCreateRunAfterShutdown(t *testing.T) {
	srv, manager := newServer(t)
	require.NoError(t, manager.Close())

	resp := postRun(t, srv, `{"retailer":"cometa"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/runs/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type stubArtifacts struct {
	mu        sync.Mutex
	runID     string
	artifacts []*models.Artifact
}

func (s *stubArtifacts) ListArtifacts(ctx context.Context, runID string) ([]*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	return s.artifacts, nil
}

func (s *stubArtifacts) requested() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func TestListRunArtifacts(t *testing.T) {
	t.Run("catalog disabled", func(t *testing.T) {
		srv, _ := newServer(t)
		resp, err := http.Get(srv.URL + "/api/v1/runs/any/artifacts")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("run still queued", func(t *testing.T) {
		srv, manager := newServer(t, WithArtifacts(&stubArtifacts{}))
		job, err := manager.Submit("cometa")
		require.NoError(t, err)

		resp, err := http.Get(srv.URL + "/api/v1/runs/" + job.ID + "/artifacts")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("finished run", func(t *testing.T) {
		stub := &stubArtifacts{artifacts: []*models.Artifact{
			{RunID: "x", Retailer: "cometa", RelPath: "Cometa-Supermercados/encarte_1/p1.png", Kind: models.KindScreenshot},
		}}
		srv, manager := newServer(t, WithArtifacts(stub))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go manager.StartWorker(ctx)

		job, err := manager.Submit("cometa")
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			j, err := manager.Get(job.ID)
			return err == nil && j.Status == jobs.StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		resp, err := http.Get(srv.URL + "/api/v1/runs/" + job.ID + "/artifacts")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body []models.Artifact
		decode(t, resp, &body)
		require.Len(t, body, 1)
		assert.Equal(t, models.KindScreenshot, body[0].Kind)
		assert.Equal(t, "x", stub.requested())
	})
}
