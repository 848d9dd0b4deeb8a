package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/encarte-scraper/internal/slug"
)

var ErrOutsideRoot = errors.New("path escapes output root")

// Layout maps retailer, store and validity names to directories below Root.
type Layout struct {
	Root string
}

func NewLayout(root string) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}
	return &Layout{Root: abs}, nil
}

// Dir joins already-slugged parts under Root. Parts are sanitized again so a
// caller can never produce separators or "..".
func (l *Layout) Dir(parts ...string) (string, error) {
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, l.Root)
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		elems = append(elems, slug.Sanitize(p, slug.DefaultMaxLen))
	}

	dir := filepath.Join(elems...)
	if !l.contains(dir) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}
	return dir, nil
}

// Ensure is Dir plus MkdirAll.
func (l *Layout) Ensure(parts ...string) (string, error) {
	dir, err := l.Dir(parts...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

func (l *Layout) Rel(path string) (string, error) {
	if !l.contains(path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (l *Layout) contains(path string) bool {
	rel, err := filepath.Rel(l.Root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// WriteFile writes data next to path and renames it into place.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}

// UniquePath returns dir/name, or dir/base_k.ext for the first k that does
// not exist yet.
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for k := 1; ; k++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, k, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
