package hashing

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

// ReportFileName is the verification report written into a checked folder.
const ReportFileName = "relatorio_hashes.pdf"

// WriteTemplate writes a hashes.txt skeleton into dir listing its .zip,
// .7z and .pdf files (the verification report excluded) as "name:hash".
// It returns the listed names.
func WriteTemplate(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "folder not found: "+dir, err)
	}

	var names []string
	for _, ext := range []string{".zip", ".7z", ".pdf"} {
		var group []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ext) || name == ReportFileName {
				continue
			}
			group = append(group, name)
		}
		sort.Strings(group)
		names = append(names, group...)
	}

	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = n + ":hash"
	}

	path := filepath.Join(dir, TextManifestName)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to write "+path, err)
	}
	return names, nil
}
