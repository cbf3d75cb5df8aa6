package verify

import (
	"github.com/unidoc/unipdf/v3/creator"
	"github.com/unidoc/unipdf/v3/model"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/pdfutil"
)

// ReportWriter persists a finished verification report.
type ReportWriter interface {
	WriteReport(path string, r *models.VerificationReport) error
}

// PDFWriter writes the colored PDF report. Sections follow completion
// order.
type PDFWriter struct {
	LicenseKey string
	FontSize   float64
}

var (
	colorBlack = creator.ColorRGBFrom8bit(0, 0, 0)
	colorGreen = creator.ColorRGBFrom8bit(0, 150, 0)
	colorRed   = creator.ColorRGBFrom8bit(255, 0, 0)
)

// WriteReport renders r to path, overwriting any previous report.
func (w PDFWriter) WriteReport(path string, r *models.VerificationReport) error {
	if err := pdfutil.Configure(w.LicenseKey); err != nil {
		return err
	}

	size := w.FontSize
	if size <= 0 {
		size = 12
	}
	font, err := model.NewStandard14Font(model.HelveticaName)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReportFailed, "failed to load report font", err)
	}

	c := creator.New()
	c.NewPage()

	draw := func(text string, color creator.Color) error {
		p := c.NewParagraph(text)
		p.SetFont(font)
		p.SetFontSize(size)
		p.SetColor(color)
		p.SetLineHeight(1.4)
		return c.Draw(p)
	}

	if err := draw(Summary(r), colorBlack); err != nil {
		return apperrors.Wrap(apperrors.ErrReportFailed, "failed to draw report summary", err)
	}
	for _, f := range r.Files {
		color := colorGreen
		if f.Failed() {
			color = colorRed
		}
		if err := draw(Section(f), color); err != nil {
			return apperrors.Wrap(apperrors.ErrReportFailed, "failed to draw report section", err)
		}
	}

	if err := c.WriteToFile(path); err != nil {
		return apperrors.Wrap(apperrors.ErrReportFailed, "failed to write "+path, err)
	}
	return nil
}
