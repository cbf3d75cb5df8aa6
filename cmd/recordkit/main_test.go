package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Commands:")
	assert.Contains(t, stderr, usageVerify)

	code, _, stderr = runCLI(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "recordkit dev")
}

func TestRun_WrongArgumentCount(t *testing.T) {
	code, _, stderr := runCLI(t, "check", "only-one")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "usage: recordkit "+usageCheck)
}

func TestRun_Template(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("zip"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("pdf"), 0644))

	code, stdout, _ := runCLI(t, "template", dir)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "hashes.txt criado com 2 arquivos")

	data, err := os.ReadFile(filepath.Join(dir, "hashes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a.zip:hash\nb.pdf:hash", string(data))
}

func TestRun_VerifyWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("zip"), 0644))

	code, _, stderr := runCLI(t, "verify", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "hashes.txt")
}

func TestRun_VerifyMissingFolder(t *testing.T) {
	code, _, _ := runCLI(t, "verify", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, code)
}

func TestRun_CheckMissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, "check", "-alg", "sha512", filepath.Join(t.TempDir(), "nope.zip"), "abc")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "file not found")
}

func TestRun_CheckRejectsUnknownAlgorithm(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(file, []byte("zip"), 0644))

	code, _, _ := runCLI(t, "check", "-alg", "md5", file, "abc")
	assert.Equal(t, 1, code)
}

func TestRun_NormalizeEmptyFolder(t *testing.T) {
	code, stdout, _ := runCLI(t, "normalize", t.TempDir())
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Arquivos convertidos: 0")
}

func TestRun_TransformUnknownProvider(t *testing.T) {
	code, _, stderr := runCLI(t, "transform", "-provider", "yahoo", "export.json")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown provider "yahoo"`)
}

func TestRun_AccessLogsMissingPath(t *testing.T) {
	code, _, stderr := runCLI(t, "accesslogs", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "path not found")
}

func TestRun_Unzip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "export", "calls.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("calls.html")
	require.NoError(t, err)
	_, err = w.Write([]byte("<html></html>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	code, stdout, _ := runCLI(t, "unzip", root)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Arquivos extraídos: 1")
	assert.FileExists(t, filepath.Join(root, "export", "calls.html"))
	assert.NoFileExists(t, path)

	code, _, stderr := runCLI(t, "unzip", filepath.Join(root, "missing"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "folder not found")
}
