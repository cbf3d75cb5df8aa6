package sheet

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/metrics"
	"github.com/kimhsiao/recordkit/internal/models"
)

// Options adjusts the written file.
type Options struct {
	// FileName replaces the default log-acesso-{identifier}-{service} stem.
	FileName string
	// IPHeader renames the IP column.
	IPHeader string
}

// FileName returns the default spreadsheet name for user.
func FileName(user *models.UserAccessLogs) string {
	return fmt.Sprintf("log-acesso-%s-%s.xlsx", user.Identifier, user.Service)
}

func columnWidth(n int) float64 {
	w := 1.2 * float64(n)
	if w > excelize.MaxColumnWidth {
		return excelize.MaxColumnWidth
	}
	return w
}

// Write renders rows into dir and returns the written path. An empty rows
// slice writes nothing and returns an empty path.
func Write(dir string, user *models.UserAccessLogs, rows []Row, opts Options) (string, error) {
	if len(rows) == 0 {
		logging.Info("no access logs to write", map[string]interface{}{
			"service":    user.Service,
			"identifier": user.Identifier,
		})
		return "", nil
	}

	name := FileName(user)
	if opts.FileName != "" {
		name = strings.TrimSuffix(opts.FileName, ".xlsx") + ".xlsx"
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	path := filepath.Join(dir, name)

	headers := make([]string, len(Headers))
	copy(headers, Headers)
	if opts.IPHeader != "" {
		headers[1] = opts.IPHeader
	}

	f := excelize.NewFile()
	defer f.Close()

	title := SheetTitle(user.Service, user.Identifier)
	if err := f.SetSheetName(f.GetSheetName(0), title); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, "failed to name worksheet", err)
	}

	widths := make([]int, len(headers))
	writeRow := func(n int, cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
			if l := utf8.RuneCountInString(c); l > widths[i] {
				widths[i] = l
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		return f.SetSheetRow(title, cell, &values)
	}

	if err := writeRow(1, headers); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, "failed to write header row", err)
	}
	for i, r := range rows {
		if err := writeRow(i+2, r.Values()); err != nil {
			return "", apperrors.Wrap(apperrors.ErrInternal, "failed to write row", err)
		}
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(title, 1, 1, style)
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrInternal, "invalid column", err)
		}
		if err := f.SetColWidth(title, col, col, columnWidth(w)); err != nil {
			return "", apperrors.Wrap(apperrors.ErrInternal, "failed to size column", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, "failed to save spreadsheet", err)
	}
	metrics.SheetsWritten.Inc()
	logging.Info("spreadsheet written", map[string]interface{}{"path": path, "rows": len(rows)})
	return path, nil
}
