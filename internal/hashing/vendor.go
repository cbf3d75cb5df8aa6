package hashing

import (
	"os"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

// Vertical band, in PDF user space, that holds the hash listing. Headers
// and footers outside it carry vendor letterhead.
const (
	bandBottom        = 50.0
	bandTopFirstPage  = 550.0
	bandTopOtherPages = 660.0
)

const vendorAddress = "GoogleLLC1600AmphitheatreParkwMountainView,California94043www.google.com"

// ReadVendorPDF returns the text of the marks inside the listing band of
// every page, in reading order.
func ReadVendorPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Wrap(apperrors.ErrManifestMissing, "manifest not found: "+path, err)
		}
		return "", apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to open vendor pdf", err)
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to open vendor pdf", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to get page count", err)
	}

	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to read vendor pdf page", err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to create extractor", err)
		}
		pageText, _, _, err := ex.ExtractPageText()
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to extract vendor pdf text", err)
		}

		b.WriteString(bandText(pageText.Marks().Elements(), bandTop(i)))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// bandTop is the upper edge of the listing on the given 1-based page.
func bandTop(page int) float64 {
	if page == 1 {
		return bandTopFirstPage
	}
	return bandTopOtherPages
}

// bandText concatenates the marks whose baseline lies inside the band.
func bandText(marks []extractor.TextMark, top float64) string {
	var b strings.Builder
	for _, mark := range marks {
		if inBand(mark.BBox.Lly, top) {
			b.WriteString(mark.Text)
		}
	}
	return b.String()
}

func inBand(y, top float64) bool {
	return y > bandBottom && y < top
}

// NormalizeVendorText turns the raw band text into "name:hash" lines. It
// reports false, leaving text untouched, when no SHA512 marker is present.
func NormalizeVendorText(text string) (string, bool) {
	if !strings.Contains(text, "SHA512") {
		return text, false
	}

	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, " ", "")

	var b strings.Builder
	for _, part := range strings.Split(text, "SHA512-") {
		part = strings.ReplaceAll(part, vendorAddress, "")
		if h := ExtractSHA512(part); h != "" {
			part = strings.Replace(part, h, h+"\n", 1)
		}
		b.WriteString(part)
	}
	return b.String(), true
}
