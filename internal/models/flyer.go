package models

import (
	"strings"
	"time"
)

type ArtifactKind string

const (
	KindImage      ArtifactKind = "image"
	KindPDF        ArtifactKind = "pdf"
	KindScreenshot ArtifactKind = "screenshot"
)

// Retailer identifies one supermarket chain and where its flyers live.
type Retailer struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	BaseURL string `json:"base_url"`
}

// Store is a location picked in a retailer's store locator. Any field may be
// empty when the site does not ask for it.
type Store struct {
	State  string `json:"state,omitempty"`
	Region string `json:"region,omitempty"`
	City   string `json:"city,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (s Store) Label() string {
	var parts []string
	for _, p := range []string{s.State, s.Region, s.City, s.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, " / ")
}

// Artifact is one saved flyer page: an image, a PDF or a screenshot.
type Artifact struct {
	RunID        string       `json:"run_id"`
	Retailer     string       `json:"retailer"`
	Store        Store        `json:"store"`
	Journal      int          `json:"journal"`
	Page         int          `json:"page"`
	Sub          int          `json:"sub"`
	SourceRef    string       `json:"source_ref"`
	Kind         ArtifactKind `json:"kind"`
	Path         string       `json:"path"`
	RelPath      string       `json:"rel_path"`
	Size         int64        `json:"size"`
	ContentType  string       `json:"content_type,omitempty"`
	ValiditySlug string       `json:"validity_slug"`
	SavedAt      time.Time    `json:"saved_at"`
}

type StoreReport struct {
	Store     Store     `json:"store"`
	Artifacts int       `json:"artifacts"`
	Error     string    `json:"error,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Duration  string    `json:"duration"`
	StartedAt time.Time `json:"started_at"`
}

// RunReport summarises one retailer run.
type RunReport struct {
	ID         string        `json:"id"`
	Retailer   string        `json:"retailer"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stores     []StoreReport `json:"stores"`
	Error      string        `json:"error,omitempty"`
}

func NewRunReport(id, retailer string) *RunReport {
	return &RunReport{
		ID:        id,
		Retailer:  retailer,
		StartedAt: time.Now(),
		Stores:    make([]StoreReport, 0),
	}
}

func (r *RunReport) Artifacts() int {
	total := 0
	for _, s := range r.Stores {
		total += s.Artifacts
	}
	return total
}

func (r *RunReport) Failed() int {
	failed := 0
	for _, s := range r.Stores {
		if s.Error != "" && !s.Skipped {
			failed++
		}
	}
	return failed
}

func (r *RunReport) Finish(err error) {
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}
