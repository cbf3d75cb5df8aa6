package hashing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unipdf/v3/creator"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/pdfutil"
)

func TestInBand(t *testing.T) {
	assert.True(t, inBand(100, bandTopFirstPage))
	assert.False(t, inBand(50, bandTopFirstPage))
	assert.False(t, inBand(600, bandTopFirstPage))
	assert.True(t, inBand(600, bandTopOtherPages))
	assert.False(t, inBand(700, bandTopOtherPages))

	assert.Equal(t, bandTopFirstPage, bandTop(1))
	assert.Equal(t, bandTopOtherPages, bandTop(2))
}

func mark(text string, y float64) extractor.TextMark {
	return extractor.TextMark{Text: text, BBox: model.PdfRectangle{Llx: 40, Lly: y, Urx: 60, Ury: y + 8}}
}

func TestBandText(t *testing.T) {
	marks := []extractor.TextMark{
		mark("Valores de Hash", 800),
		mark("x.zip:", 400),
		mark(" ", 400),
		mark("SHA512-", 400),
		mark("abc", 390),
		mark("p. 1", 20),
		mark("late", 600),
	}

	assert.Equal(t, "x.zip: SHA512-abc", bandText(marks, bandTop(1)))
	assert.Equal(t, "x.zip: SHA512-abclate", bandText(marks, bandTop(2)))
	assert.Empty(t, bandText(nil, bandTop(1)))
}

// writeVendorPDF lays out a two page vendor listing on A4. Positions are
// measured from the top of the page.
func writeVendorPDF(t *testing.T, path string, pages [][]struct {
	text string
	top  float64
}) {
	t.Helper()
	font, err := model.NewStandard14Font(model.HelveticaName)
	require.NoError(t, err)

	c := creator.New()
	c.SetPageSize(creator.PageSizeA4)
	for _, page := range pages {
		c.NewPage()
		for _, line := range page {
			p := c.NewParagraph(line.text)
			p.SetFont(font)
			p.SetFontSize(6)
			p.SetEnableWrap(false)
			p.SetPos(20, line.top)
			require.NoError(t, c.Draw(p))
		}
	}
	require.NoError(t, c.WriteToFile(path))
}

func TestLoadManifest_VendorPDF(t *testing.T) {
	key := os.Getenv("UNIDOC_LICENSE_API_KEY")
	if key == "" {
		t.Skip("UNIDOC_LICENSE_API_KEY not set")
	}
	require.NoError(t, pdfutil.Configure(key))

	hx := strings.Repeat("a", 128)
	hy := strings.Repeat("b", 128)
	hz := strings.Repeat("c", 128)

	type line = struct {
		text string
		top  float64
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "Valores de Hash - 0001.pdf")
	writeVendorPDF(t, path, [][]line{
		{
			{"z.zip: SHA512-" + hz, 20},
			{"x.zip: SHA512-" + hx, 400},
			{"Google LLC 1600 Amphitheatre Parkw Mountain View, California 94043 www.google.com", 815},
		},
		{
			{"z.zip: SHA512-" + hz, 100},
			{"y.zip: SHA512-" + hy, 230},
		},
	})

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, models.FormatVendorPDF, m.Format)
	assert.Equal(t, models.SHA512, m.Algorithm)
	assert.Equal(t, map[string]string{"x.zip": hx, "y.zip": hy}, m.Entries)

	listing, err := os.ReadFile(filepath.Join(dir, TextManifestName))
	require.NoError(t, err)
	assert.Equal(t, "x.zip:"+hx+"\ny.zip:"+hy+"\n", string(listing))
}
