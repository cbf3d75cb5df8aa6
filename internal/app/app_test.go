package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/recordkit/internal/config"
)

func TestNew_WithoutStore(t *testing.T) {
	a, err := New(config.Default())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Runs())
	assert.NotNil(t, a.Geo)
	assert.NotNil(t, a.Normalizer)
	assert.NotNil(t, a.AccessLogs)
	assert.NotNil(t, a.Verifier())
}

func TestNew_WithStore(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Metrics.TextfilePath = filepath.Join(t.TempDir(), "recordkit.prom")

	a, err := New(cfg)
	require.NoError(t, err)

	runs := a.Runs()
	require.NotNil(t, runs)
	list, err := runs.ListRuns(10)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, a.Close())
	assert.FileExists(t, cfg.Metrics.TextfilePath)
	assert.FileExists(t, filepath.Join(cfg.Storage.DataDir, "recordkit.db"))
}
