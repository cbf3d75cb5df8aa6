package parser

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/recordkit/internal/models"
)

func TestBuildTextRecord(t *testing.T) {
	rec, err := TokenizeFile(filepath.Join("testdata", "whatsapp_record.html"))
	require.NoError(t, err)

	tr := BuildTextRecord(rec, filepath.Join("root", "export-1"))

	assert.Equal(t, "2024-01-01_12-00-00 whatsapp_record WhatsApp Business +55 11999998888.txt", tr.FileName)
	assert.Equal(t, "+55 11999998888", tr.AccountIdentifier)
	assert.Equal(t, "2024-01-01_12-00-00", tr.Stamp)
	assert.True(t, tr.IsMessaging)
	assert.False(t, tr.IsBilling)
	assert.Contains(t, tr.Body, "IP Address 200.1.2.3\nTime 2024-01-01 10:00:00 UTC")
}

func TestBuildTextRecord_billing(t *testing.T) {
	rec := &models.ExportedRecord{
		SourcePath:  "/x/calls.html",
		GeneratedAt: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		Kind:        models.KindMessaging,
		Lines:       []string{"Service", "WhatsApp", "Message Log", "Timestamp"},
		Merged:      []string{"Service WhatsApp", "Message Log", "Timestamp"},
	}

	tr := BuildTextRecord(rec, "/x")
	assert.True(t, tr.IsBilling)
	assert.Equal(t, "2024-02-03_04-05-06 calls WhatsApp.txt", tr.FileName)

	rec.Merged = []string{"Service WhatsApp"}
	assert.True(t, BuildTextRecord(rec, "/x/bilhetagem/y").IsBilling)
	assert.False(t, BuildTextRecord(rec, "/x/y").IsBilling)
}

func TestAccountIdentifier_slashIsSanitized(t *testing.T) {
	rec := &models.ExportedRecord{
		SourcePath: "a.html",
		Lines:      []string{"Service", "Instagram", "Account Identifier", "team/ops"},
	}
	tr := BuildTextRecord(rec, ".")
	assert.Equal(t, "team_ops", tr.AccountIdentifier)
}

func TestAccountIdentifier_relativeNamesAreSanitized(t *testing.T) {
	for _, id := range []string{".", "..", " .. "} {
		rec := &models.ExportedRecord{
			SourcePath: "a.html",
			Lines:      []string{"Service", "Instagram", "Account Identifier", id},
		}
		tr := BuildTextRecord(rec, ".")
		assert.Equal(t, "_", tr.AccountIdentifier, "identifier %q", id)
		assert.Contains(t, tr.FileName, "Instagram _.txt")
	}
	assert.Equal(t, "...", safeName("..."))
}

func TestIsEmptyRecord(t *testing.T) {
	empty := "Service WhatsApp\nMessage Log\nNo responsive records located\nCall Logs\nNo responsive records located"
	assert.True(t, IsEmptyRecord(empty))
	assert.False(t, IsEmptyRecord("Message Log\nNo responsive records located"))
	assert.False(t, IsEmptyRecord(empty+"\nEvents\nNo responsive records located"))
}

func TestIsBillingRecord(t *testing.T) {
	assert.True(t, IsBillingRecord("/a/bilhetagem/x.txt", ""))
	assert.True(t, IsBillingRecord("/a/x.txt", "Call Log\n"))
	assert.False(t, IsBillingRecord("/a/x.txt", "Ip Addresses\n"))
}

func TestSkippedName(t *testing.T) {
	assert.True(t, SkippedName("preservation-1.txt"))
	assert.True(t, SkippedName("instructions.txt"))
	assert.False(t, SkippedName("records.txt"))
}
