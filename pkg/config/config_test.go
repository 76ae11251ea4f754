package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/restpose\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/restpose", cfg.DataDir)
	assert.Equal(t, Default().SearchWorkers, cfg.SearchWorkers)
	assert.Equal(t, Default().ProcessingQueue, cfg.ProcessingQueue)
}

func TestLoadFileHonoursExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "data_dir: /data\nsearch_workers: 8\nprocessing_queue:\n  throttle_size: 10\n  max_size: 20\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.SearchWorkers)
	assert.Equal(t, 10, cfg.ProcessingQueue.ThrottleSize)
	assert.Equal(t, 20, cfg.ProcessingQueue.MaxSize)
}
