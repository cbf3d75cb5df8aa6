package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(FilesHashed.WithLabelValues("verified"))
	FilesHashed.WithLabelValues("verified").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FilesHashed.WithLabelValues("verified")))
}

func TestWriteTextfile(t *testing.T) {
	SheetsWritten.Inc()
	path := filepath.Join(t.TempDir(), "recordkit.prom")

	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "recordkit_sheets_written_total"))

	assert.NoError(t, WriteTextfile(""))
}
