package main

import (
	"os"
	"path/filepath"
	"testing"

	"visionstream/internal/config"
	"visionstream/internal/dto"
	"visionstream/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_IndexesArtifacts(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		StaticDirectory:   filepath.Join(root, "static"),
		CapturesDirectory: filepath.Join(root, "static", "captures"),
		DatabasePath:      filepath.Join(root, "data", "artifacts.db"),
	}
	require.NoError(t, os.MkdirAll(cfg.CapturesDirectory, 0755))
	for path, data := range map[string]string{
		filepath.Join(cfg.CapturesDirectory, "snapshot_20250101_101010.jpg"): "aa",
		filepath.Join(cfg.StaticDirectory, "analysis_1735726210.jpg"):        "bbb",
		filepath.Join(cfg.StaticDirectory, "logo.jpg"):                       "c",
		filepath.Join(cfg.StaticDirectory, "index.html"):                     "<html>",
	} {
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	}

	require.NoError(t, migrate(cfg))
	// Running twice must not duplicate rows.
	require.NoError(t, migrate(cfg))

	db, err := sqlite.New(cfg.DatabasePath)
	require.NoError(t, err)
	defer db.Close()

	repo := sqlite.NewArtifactRepository(db)
	count, err := repo.GetTotalCount(&dto.ArtifactFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	size, err := repo.GetTotalSize()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}
