package providers

import (
	"io/fs"
	"path/filepath"

	"github.com/kimhsiao/recordkit/internal/accesslog"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
)

const (
	microsoftService   = "Microsoft"
	microsoftPattern   = "ConsIpDataOnly*.json"
	microsoftOutFolder = "processamentos microsoft"
)

type microsoftExport struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifierType"`
	IPData         []struct {
		IPAddress          string `json:"ipAddress"`
		DateTimeChangedUTC string `json:"dateTimeChangedUtc"`
	} `json:"ipData"`
}

// Microsoft reads every ConsIpDataOnly*.json below a folder and groups the
// entries by account identifier.
type Microsoft struct{}

func (Microsoft) Name() string { return microsoftService }

// Transform walks root. Results are written to a sibling folder named
// "processamentos microsoft".
func (Microsoft) Transform(root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid folder", err)
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(microsoftPattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "failed to walk "+root, err)
	}

	users := make(map[string]*models.UserAccessLogs)
	var order []string
	for _, file := range files {
		var export microsoftExport
		if err := decode(file, "microsoft", &export); err != nil {
			return nil, err
		}

		user, ok := users[export.Identifier]
		if !ok {
			user = &models.UserAccessLogs{Service: microsoftService, Identifier: export.Identifier}
			users[export.Identifier] = user
			order = append(order, export.Identifier)
		}

		for _, entry := range export.IPData {
			ip, port := accesslog.ExtractIPPort(entry.IPAddress)
			at, err := parseISO(entry.DateTimeChangedUTC)
			if err != nil || ip == "" {
				logging.Warn("skipping ip entry", map[string]interface{}{
					"file":      file,
					"ipAddress": entry.IPAddress,
					"date":      entry.DateTimeChangedUTC,
				})
				continue
			}
			user.Logs = append(user.Logs, models.AccessLog{IP: ip, Port: port, Time: at})
		}
	}

	out := make([]*models.UserAccessLogs, 0, len(order))
	for _, id := range order {
		out = append(out, users[id])
	}

	return &Result{
		Users:   out,
		OutDir:  filepath.Join(filepath.Dir(abs), microsoftOutFolder),
		Message: "Os dados foram processados na pasta '" + microsoftOutFolder + "'",
	}, nil
}
