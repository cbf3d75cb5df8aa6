package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFWriter(t *testing.T) {
	key := os.Getenv("RECORDKIT_PDF_LICENSE_KEY")
	if key == "" {
		t.Skip("RECORDKIT_PDF_LICENSE_KEY not set")
	}

	path := filepath.Join(t.TempDir(), "relatorio_hashes.pdf")
	require.NoError(t, PDFWriter{LicenseKey: key}.WriteReport(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
