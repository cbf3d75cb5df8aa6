// Package accesslog turns normalized text records into per-account access
// events.
package accesslog

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/parser"
)

const (
	serviceLabel      = "Service"
	identifierLabel   = "Account Identifier"
	ipSectionMarker   = "Ip Addresses"
	ipAddressLabel    = "IP Address"
	timeLabel         = "Time"
	messagingPlatform = "WhatsApp"
	utcLayout         = "2006-01-02 15:04:05 MST"
)

// ParseUTC parses "YYYY-MM-DD HH:MM:SS UTC".
func ParseUTC(s string) (time.Time, error) {
	t, err := time.Parse(utcLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func indexContaining(lines []string, term string) int {
	for i, l := range lines {
		if strings.Contains(l, term) {
			return i
		}
	}
	return -1
}

func indexExact(lines []string, term string) int {
	for i, l := range lines {
		if l == term {
			return i
		}
	}
	return -1
}

// valueAfter returns the text following label on line.
func valueAfter(line, label string) string {
	_, v, ok := strings.Cut(line, label)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// ParseLines builds the access logs of one normalized record.
func ParseLines(lines []string) (*models.UserAccessLogs, error) {
	serviceIdx := indexContaining(lines, serviceLabel)
	identifierIdx := indexContaining(lines, identifierLabel)
	sectionIdx := indexExact(lines, ipSectionMarker)
	if serviceIdx < 0 || identifierIdx < 0 || sectionIdx < 0 {
		return nil, apperrors.New(apperrors.ErrStructuralParse, "record lacks Service, Account Identifier or Ip Addresses")
	}

	fields := strings.Fields(lines[serviceIdx])
	if len(fields) < 2 {
		return nil, apperrors.New(apperrors.ErrStructuralParse, "empty service line")
	}

	user := &models.UserAccessLogs{
		Service:    fields[1],
		Identifier: valueAfter(lines[identifierIdx], identifierLabel),
	}
	messaging := strings.Contains(lines[serviceIdx], messagingPlatform)

	used := make(map[int]bool)
	for i := sectionIdx + 1; i+1 < len(lines); i++ {
		if used[i] {
			continue
		}
		line, next := lines[i], lines[i+1]

		var ipLine, timeLine int
		switch {
		case strings.Contains(line, ipAddressLabel):
			ipLine, timeLine = i, i+1
		case messaging && strings.Contains(next, ipAddressLabel) && strings.Contains(line, timeLabel):
			ipLine, timeLine = i+1, i
		default:
			continue
		}

		entry, ok := parsePair(lines[ipLine], lines[timeLine])
		if !ok {
			continue
		}
		used[ipLine], used[timeLine] = true, true
		user.Logs = append(user.Logs, entry)
	}
	return user, nil
}

// parsePair converts an "IP Address ..." line and its "Time ..." companion.
func parsePair(ipLine, timeLine string) (models.AccessLog, bool) {
	ip, port := ExtractIPPort(valueAfter(ipLine, ipAddressLabel))
	if ip == "" || !strings.Contains(timeLine, timeLabel) {
		return models.AccessLog{}, false
	}
	ts, err := ParseUTC(valueAfter(timeLine, timeLabel))
	if err != nil {
		return models.AccessLog{}, false
	}
	return models.AccessLog{IP: ip, Port: port, Time: ts}, true
}

// Parse reads a normalized record from r.
func Parse(r io.Reader) (*models.UserAccessLogs, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return ParseLines(lines)
}

// ParseFile reads a normalized record from disk.
func ParseFile(path string) (*models.UserAccessLogs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	logs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return logs, nil
}

// hasIPSection reports whether text holds the "Ip Addresses" section line.
func hasIPSection(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimRight(line, "\r") == ipSectionMarker {
			return true
		}
	}
	return false
}

// FindRecordFiles lists the text records under root that carry access logs.
// Billing records, empty records, instruction or preservation notices and
// text files without an Ip Addresses section are skipped.
func FindRecordFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("skipping unreadable entry", map[string]interface{}{"path": path, "error": err.Error()})
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		if parser.SkippedName(d.Name()) {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			logging.Warn("skipping unreadable record", map[string]interface{}{"path": abs, "error": err.Error()})
			return nil
		}
		text := string(content)
		if parser.IsBillingRecord(abs, text) || parser.IsEmptyRecord(text) {
			return nil
		}
		if !hasIPSection(text) {
			logging.Debug("skipping text file without access logs", map[string]interface{}{"path": abs})
			return nil
		}
		files = append(files, abs)
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}
