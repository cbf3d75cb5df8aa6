package providers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestByName(t *testing.T) {
	tr, err := ByName("Microsoft")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", tr.Name())

	tr, err = ByName("telegram")
	require.NoError(t, err)
	assert.Equal(t, "Telegram", tr.Name())

	_, err = ByName("yahoo")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestMicrosoft(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "telematica")
	write(t, filepath.Join(root, "a", "ConsIpDataOnly_1.json"), `{
		"identifier": "alvo@outlook.com",
		"identifierType": "email",
		"ipData": [
			{"ipAddress": "200.1.2.3", "dateTimeChangedUtc": "2024-01-01T10:00:00Z"},
			{"ipAddress": "[2804:14c::1]:443", "dateTimeChangedUtc": "2024-01-02T10:00:00.5"}
		]
	}`)
	write(t, filepath.Join(root, "b", "ConsIpDataOnly_2.json"), `{
		"identifier": "alvo@outlook.com",
		"ipData": [{"ipAddress": "10.0.0.1:8080", "dateTimeChangedUtc": "2024-01-03T10:00:00+02:00"}]
	}`)
	write(t, filepath.Join(root, "b", "ConsIpDataOnly_3.json"), `{
		"identifier": "outro@outlook.com",
		"ipData": [{"ipAddress": "not an ip", "dateTimeChangedUtc": "2024-01-03T10:00:00Z"}]
	}`)
	write(t, filepath.Join(root, "ignored.json"), `{"identifier": 1}`)

	res, err := Microsoft{}.Transform(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "processamentos microsoft"), res.OutDir)
	assert.Contains(t, res.Message, "processamentos microsoft")
	require.Len(t, res.Users, 2)

	first := res.Users[0]
	assert.Equal(t, "alvo@outlook.com", first.Identifier)
	assert.Equal(t, "Microsoft", first.Service)
	require.Len(t, first.Logs, 3)
	assert.Equal(t, "2804:14c::1", first.Logs[1].IP)
	assert.Equal(t, "443", first.Logs[1].Port)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 500000000, time.UTC), first.Logs[1].Time)
	assert.Equal(t, "8080", first.Logs[2].Port)
	assert.Equal(t, time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC), first.Logs[2].Time)

	assert.Empty(t, res.Users[1].Logs)
}

func TestMicrosoft_InvalidExport(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "ConsIpDataOnly.json"), `{"identifier": "x", "ipData": [{"ipAddress": 5}]}`)

	_, err := Microsoft{}.Transform(root)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestTelegram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	write(t, path, `{"users": [
		{"user_id": 1, "display_name": "Ana", "phone_number": "+5511988887777", "username": "ana", "ip_address": "200.1.2.3", "timestamp": "2024-01-01T10:00:00+00:00"},
		{"user_id": "2", "display_name": "Bruno", "phone_number": "+5511977776666", "ip_address": "10.0.0.1"},
		{"user_id": "3", "display_name": "Sem IP", "phone_number": "+5511966665555"}
	]}`)

	res, err := Telegram{}.Transform(path)
	require.NoError(t, err)

	assert.Equal(t, dir, res.OutDir)
	assert.Equal(t, "registro-usuários-telegram", res.Sheet.FileName)
	assert.Equal(t, "IP Registro", res.Sheet.IPHeader)
	require.Len(t, res.Users, 1)

	user := res.Users[0]
	assert.Equal(t, "todos", user.Identifier)
	assert.Equal(t, "Telegram", user.Service)
	require.Len(t, user.Logs, 2)
	assert.Equal(t, "Ana +5511988887777 ana", user.Logs[0].Identifier)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), user.Logs[0].Time)
	assert.Equal(t, "Bruno +5511977776666", user.Logs[1].Identifier)
	assert.True(t, user.Logs[1].Time.IsZero())
}

func TestTelegram_Missing(t *testing.T) {
	_, err := Telegram{}.Transform(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestTelegram_WrongShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	write(t, path, `{"people": []}`)
	_, err := Telegram{}.Transform(path)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
