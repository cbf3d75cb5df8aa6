// Package verify checks evidence files against a hash manifest.
package verify

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/kimhsiao/recordkit/internal/archive"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/hashing"
)

// Discovery is the result of scanning a verification folder.
type Discovery struct {
	// Candidates are absolute paths in natural order.
	Candidates []string
	// ManifestPath is empty when no manifest was found at the root.
	ManifestPath string
}

const reportMarker = "relatorio_hashes"

// Discover lists candidate files in root and one level of
// subdirectories, and locates the manifest among root entries. A vendor
// PDF manifest takes precedence over a text or csv one.
func Discover(root string) (*Discovery, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid folder", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, apperrors.New(apperrors.ErrNotFound, "folder not found: "+root)
	}

	d := &Discovery{}
	var manifest, vendor string
	if err := scan(abs, 0, d, &manifest, &vendor); err != nil {
		return nil, err
	}

	d.ManifestPath = manifest
	if vendor != "" {
		d.ManifestPath = vendor
	}
	sort.SliceStable(d.Candidates, func(i, j int) bool {
		return natural.Less(d.Candidates[i], d.Candidates[j])
	})
	return d, nil
}

func scan(dir string, level int, d *Discovery, manifest, vendor *string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNotFound, "failed to list "+dir, err)
	}

	var nested []string
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)

		if e.IsDir() {
			if level == 0 {
				sub := &Discovery{}
				var ignored, ignoredVendor string
				if err := scan(path, 1, sub, &ignored, &ignoredVendor); err != nil {
					return err
				}
				nested = append(nested, sub.Candidates...)
			}
			continue
		}

		switch {
		case strings.HasSuffix(name, ".zip"), strings.HasSuffix(name, ".7z"), archive.Is7z(path):
			d.Candidates = append(d.Candidates, path)
		case strings.HasSuffix(name, ".gpg"):
			d.Candidates = append(d.Candidates, path)
		case hashing.IsManifestName(name):
			*manifest = path
		case hashing.IsVendorPDF(name):
			*vendor = path
		case strings.HasSuffix(name, ".pdf") && !strings.Contains(name, reportMarker):
			d.Candidates = append(d.Candidates, path)
		}
	}
	d.Candidates = append(d.Candidates, nested...)
	return nil
}
