package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSave(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)
	archive.now = func() time.Time { return time.Date(2024, 2, 5, 23, 0, 0, 0, time.UTC) }

	rel, err := archive.Save("payroll_2024-01.csv", []byte("Teacher\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("2024-02-05", "payroll_2024-01.csv"), rel)

	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	assert.Equal(t, "Teacher\n", string(data))

	for _, bad := range []string{"../escape.csv", "nested/file.csv", ".."} {
		_, err = archive.Save(bad, nil)
		assert.Error(t, err, bad)
	}
}

func TestArchivePrune(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	oldRel, err := archive.Save("old.pdf", []byte("%PDF"))
	require.NoError(t, err)
	freshRel, err := archive.Save("fresh.pdf", []byte("%PDF"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, oldRel), stale, stale))

	removed, err := archive.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{oldRel}, removed)
	_, err = os.Stat(filepath.Join(dir, freshRel))
	assert.NoError(t, err)
}

func TestNewArchiveRequiresDirectory(t *testing.T) {
	_, err := NewArchive(" ")
	assert.Error(t, err)
}
