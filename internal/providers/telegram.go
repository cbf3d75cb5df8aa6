package providers

import (
	"path/filepath"
	"strings"

	"github.com/kimhsiao/recordkit/internal/accesslog"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/sheet"
)

const (
	telegramService    = "Telegram"
	telegramIdentifier = "todos"
	telegramFileName   = "registro-usuários-telegram"
	telegramIPHeader   = "IP Registro"
)

type telegramExport struct {
	Users []struct {
		DisplayName string `json:"display_name"`
		Username    string `json:"username"`
		PhoneNumber string `json:"phone_number"`
		IPAddress   string `json:"ip_address"`
		Timestamp   string `json:"timestamp"`
	} `json:"users"`
}

// Telegram reads a users export into a single aggregate log where each
// entry names its own user.
type Telegram struct{}

func (Telegram) Name() string { return telegramService }

// Transform reads the export at path; the spreadsheet goes next to it.
func (Telegram) Transform(path string) (*Result, error) {
	var export telegramExport
	if err := decode(path, "telegram", &export); err != nil {
		return nil, err
	}

	user := &models.UserAccessLogs{Service: telegramService, Identifier: telegramIdentifier}
	for _, u := range export.Users {
		var names []string
		for _, part := range []string{u.DisplayName, u.PhoneNumber, u.Username} {
			if part != "" {
				names = append(names, part)
			}
		}

		ip, port := accesslog.ExtractIPPort(u.IPAddress)
		if ip == "" {
			continue
		}
		log := models.AccessLog{IP: ip, Port: port, Identifier: strings.Join(names, " ")}
		if u.Timestamp != "" {
			at, err := parseISO(u.Timestamp)
			if err != nil {
				logging.Warn("ignoring invalid timestamp", map[string]interface{}{"file": path, "timestamp": u.Timestamp})
			} else {
				log.Time = at
			}
		}
		user.Logs = append(user.Logs, log)
	}

	return &Result{
		Users:  []*models.UserAccessLogs{user},
		OutDir: filepath.Dir(path),
		Sheet: sheet.Options{
			FileName: telegramFileName,
			IPHeader: telegramIPHeader,
		},
		Message: "Os dados foram processados em '" + telegramFileName + ".xlsx'",
	}, nil
}
