// Package models provides the data types shared by the recordkit pipelines.
package models

import "time"

// DocumentKind classifies an exported record by platform family.
type DocumentKind string

const (
	KindUnknown   DocumentKind = "unknown"
	KindMessaging DocumentKind = "messaging"
	KindSocial    DocumentKind = "social"
)

// ExportedRecord is one HTML business-record export after tokenization.
type ExportedRecord struct {
	SourcePath  string       `json:"source_path"`
	GeneratedAt time.Time    `json:"generated_at"`
	Kind        DocumentKind `json:"kind"`
	// Lines holds the visible text from the "Service" header onwards.
	Lines []string `json:"lines"`
	// Merged holds Lines after label and continuation merging.
	Merged []string `json:"merged"`
}

// Service returns the raw line following the "Service" header.
func (r *ExportedRecord) Service() string {
	if len(r.Lines) < 2 {
		return ""
	}
	return r.Lines[1]
}

// TextRecord is the normalized plain-text form of an ExportedRecord.
type TextRecord struct {
	FileName          string `json:"file_name"`
	AccountIdentifier string `json:"account_identifier"`
	// Stamp is the generation time formatted for file and folder names.
	Stamp       string `json:"stamp"`
	Body        string `json:"body"`
	IsMessaging bool   `json:"is_messaging"`
	IsBilling   bool   `json:"is_billing"`
}

// FolderRenameEntry describes where an extraction folder should end up.
type FolderRenameEntry struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	IsMessaging  bool   `json:"is_messaging"`
	IsBilling    bool   `json:"is_billing"`
	TextFileName string `json:"text_file_name"`
}
