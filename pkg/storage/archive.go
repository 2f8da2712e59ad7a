package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive keeps copies of rendered payroll reports on local disk, one
// sub-directory per day.
type Archive struct {
	baseDir string
	now     func() time.Time
}

// NewArchive ensures baseDir exists and returns an Archive rooted there.
func NewArchive(baseDir string) (*Archive, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Archive{baseDir: baseDir, now: time.Now}, nil
}

// Save writes data under <day>/<filename> and returns the relative path.
// filename must be a bare file name.
func (a *Archive) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name != filename || name == "." || name == ".." {
		return "", fmt.Errorf("invalid archive file name %q", filename)
	}
	rel := filepath.Join(a.now().UTC().Format("2006-01-02"), name)
	path := filepath.Join(a.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return rel, nil
}

// Prune removes archived files last modified before now minus ttl and
// returns their relative paths.
func (a *Archive) Prune(ttl time.Duration) ([]string, error) {
	cutoff := a.now().Add(-ttl)
	var removed []string
	err := filepath.WalkDir(a.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, _ := filepath.Rel(a.baseDir, path)
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("prune archive: %w", err)
	}
	return removed, nil
}
