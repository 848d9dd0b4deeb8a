package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/encarte-scraper/internal/models"
)

const ManifestName = "manifest.json"

type ManifestEntry struct {
	RelPath      string              `json:"rel_path"`
	SourceRef    string              `json:"source_ref"`
	Store        string              `json:"store"`
	Kind         models.ArtifactKind `json:"kind"`
	Size         int64               `json:"size"`
	ValiditySlug string              `json:"validity_slug"`
	RunID        string              `json:"run_id"`
	SavedAt      time.Time           `json:"saved_at"`
}

// Manifest is a JSON index of everything saved for one retailer. It keeps
// history across runs in the same workspace; scrapers never consult it to
// skip pages.
type Manifest struct {
	mu       sync.RWMutex
	entries  map[string]*ManifestEntry
	filename string
}

func OpenManifest(dir string) (*Manifest, error) {
	m := &Manifest{
		entries:  make(map[string]*ManifestEntry),
		filename: filepath.Join(dir, ManifestName),
	}

	if err := m.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	return m, nil
}

// Record implements Sink.
func (m *Manifest) Record(_ context.Context, a *models.Artifact) error {
	if a.RelPath == "" {
		return fmt.Errorf("artifact has no relative path")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[a.RelPath] = &ManifestEntry{
		RelPath:      a.RelPath,
		SourceRef:    a.SourceRef,
		Store:        a.Store.Label(),
		Kind:         a.Kind,
		Size:         a.Size,
		ValiditySlug: a.ValiditySlug,
		RunID:        a.RunID,
		SavedAt:      a.SavedAt,
	}
	return m.save()
}

func (m *Manifest) Get(relPath string) (*ManifestEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[relPath]
	return e, ok
}

// Entries returns all entries ordered by relative path.
func (m *Manifest) Entries() []ManifestEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ManifestEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Stats counts entries per kind plus "total".
func (m *Manifest) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, e := range m.entries {
		stats[string(e.Kind)]++
	}
	stats["total"] = len(m.entries)
	return stats
}

func (m *Manifest) save() error {
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(m.filename, data)
}

func (m *Manifest) load() error {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &m.entries)
}
