package parser

import (
	"path/filepath"
	"strings"

	"github.com/kimhsiao/recordkit/internal/models"
)

// BillingFolder is the sub-folder reserved for billing exports.
const BillingFolder = "bilhetagem"

const (
	accountIdentifierLabel = "Account Identifier"
	noRecordsMarker        = "No responsive records located"
)

// BillingKeywords mark call and message metadata sections.
var BillingKeywords = []string{"Message Log", "Call Log", "Call Logs"}

// AccountIdentifier returns the raw value following the "Account Identifier" line.
func AccountIdentifier(lines []string) string {
	for i, line := range lines {
		if line == accountIdentifierLabel && i+1 < len(lines) {
			return lines[i+1]
		}
	}
	return ""
}

// displayIdentifier spaces the Brazilian country code the way analysts name folders.
func displayIdentifier(id string) string {
	return strings.ReplaceAll(id, "+55", "+55 ")
}

// safeName drops characters that cannot appear in a single path element.
// The relative names "." and ".." become "_".
func safeName(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "\x00", "")
	s = strings.TrimSpace(r.Replace(s))
	if s == "." || s == ".." {
		return "_"
	}
	return s
}

// BuildTextRecord derives the normalized text file for rec. folder is the
// directory holding the HTML export.
func BuildTextRecord(rec *models.ExportedRecord, folder string) *models.TextRecord {
	stamp := rec.GeneratedAt.UTC().Format("2006-01-02_15-04-05")
	stem := strings.TrimSuffix(filepath.Base(rec.SourcePath), filepath.Ext(rec.SourcePath))

	identifier := safeName(displayIdentifier(AccountIdentifier(rec.Lines)))
	service := rec.Service()
	if identifier != "" {
		service += " " + identifier
	}

	body := strings.Join(rec.Merged, "\n")
	return &models.TextRecord{
		FileName:          safeName(stamp+" "+stem+" "+service) + ".txt",
		AccountIdentifier: identifier,
		Stamp:             stamp,
		Body:              body,
		IsMessaging:       rec.Kind == models.KindMessaging,
		IsBilling:         strings.Contains(body, "Message Log") || strings.Contains(folder, BillingFolder),
	}
}

// IsBillingRecord reports whether a normalized text file holds billing data.
func IsBillingRecord(path, content string) bool {
	if strings.Contains(path, BillingFolder) {
		return true
	}
	for _, kw := range BillingKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// IsEmptyRecord reports whether both the message and call sections are empty.
func IsEmptyRecord(content string) bool {
	return strings.Contains(content, "Message Log\n"+noRecordsMarker) &&
		strings.Contains(content, "Call Logs\n"+noRecordsMarker) &&
		strings.Count(content, noRecordsMarker) == 2
}

// SkippedName reports whether a file name marks instructions or preservation notices.
func SkippedName(name string) bool {
	return strings.Contains(name, "instructions") || strings.Contains(name, "preservation")
}
