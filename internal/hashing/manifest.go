package hashing

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
)

// Manifest file names recognised during discovery.
const (
	TextManifestName = "hashes.txt"
	VendorPDFMarker  = "Valores de Hash"
)

const (
	csvNameColumn = 1
	csvHashColumn = 5
)

// IsManifestName reports whether name is a hashes.txt, HASHES.txt or csv manifest.
func IsManifestName(name string) bool {
	return name == "hashes.txt" || name == "HASHES.txt" || strings.HasSuffix(name, ".csv")
}

// IsVendorPDF reports whether name is a vendor-issued hash PDF.
func IsVendorPDF(name string) bool {
	return strings.Contains(name, VendorPDFMarker) && strings.HasSuffix(name, ".pdf")
}

// ManifestKey is the lookup key for a file name: the name without spaces.
func ManifestKey(name string) string {
	return strings.ReplaceAll(name, " ", "")
}

type entrySet struct {
	entries map[string]string
	seen    map[string]bool
	dups    []string
}

func newEntrySet() *entrySet {
	return &entrySet{entries: make(map[string]string), seen: make(map[string]bool)}
}

func (s *entrySet) add(name, hash string) {
	if s.seen[name] {
		s.dups = append(s.dups, name)
	}
	s.seen[name] = true
	s.entries[name] = hash
}

func (s *entrySet) manifest(format models.ManifestFormat, alg models.HashAlgorithm) *models.HashManifest {
	return &models.HashManifest{
		Format:     format,
		Algorithm:  alg,
		Entries:    s.entries,
		Duplicates: s.dups,
	}
}

// ParseText reads "name: hash" lines. Spaces are removed before splitting
// on the first colon; the hash is searched in the raw line, so a line
// without a valid digest still declares its name with an empty hash.
func ParseText(r io.Reader, alg models.HashAlgorithm) (*models.HashManifest, error) {
	set := newEntrySet()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		name, _, _ := strings.Cut(strings.ReplaceAll(line, " ", ""), ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set.add(name, Extract(line, alg))
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to read manifest", err)
	}
	return set.manifest(models.FormatText, alg), nil
}

// ParseCSV reads a CSV manifest: header row skipped, file name in the
// second column and SHA-256 in the sixth.
func ParseCSV(r io.Reader) (*models.HashManifest, error) {
	set := newEntrySet()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return set.manifest(models.FormatCSV, models.SHA256), nil
		}
		return nil, apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to read csv header", err)
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to read csv row", err)
		}
		if len(row) <= csvHashColumn {
			line, _ := cr.FieldPos(0)
			return nil, apperrors.New(apperrors.ErrManifestInvalid, "csv row has too few columns at line "+strconv.Itoa(line))
		}
		set.add(ManifestKey(row[csvNameColumn]), strings.TrimSpace(row[csvHashColumn]))
	}
	return set.manifest(models.FormatCSV, models.SHA256), nil
}

// LoadManifest reads the manifest at path, choosing the parser from its
// name. Vendor PDFs are converted to text first and the extracted listing
// is kept next to the PDF as hashes.txt when no such file exists.
func LoadManifest(path string) (*models.HashManifest, error) {
	name := filepath.Base(path)

	var (
		m   *models.HashManifest
		err error
	)
	switch {
	case IsVendorPDF(name):
		m, err = loadVendorPDF(path)
	case strings.HasSuffix(name, ".csv"):
		m, err = parseFile(path, ParseCSV)
	default:
		m, err = parseFile(path, func(r io.Reader) (*models.HashManifest, error) {
			return ParseText(r, models.SHA256)
		})
	}
	if err != nil {
		return nil, err
	}

	m.Path = path
	for _, d := range m.Duplicates {
		logging.Warn("manifest declares a file more than once, keeping the last hash", map[string]interface{}{
			"manifest": path,
			"file":     d,
		})
	}
	return m, nil
}

func parseFile(path string, parse func(io.Reader) (*models.HashManifest, error)) (*models.HashManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrManifestMissing, "manifest not found: "+path, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrManifestInvalid, "failed to open manifest", err)
	}
	defer f.Close()
	return parse(f)
}

func loadVendorPDF(path string) (*models.HashManifest, error) {
	raw, err := ReadVendorPDF(path)
	if err != nil {
		return nil, err
	}
	text, _ := NormalizeVendorText(raw)

	listing := filepath.Join(filepath.Dir(path), TextManifestName)
	if _, statErr := os.Stat(listing); os.IsNotExist(statErr) {
		if werr := os.WriteFile(listing, []byte(text), 0644); werr != nil {
			logging.Warn("could not save extracted vendor hashes", map[string]interface{}{"path": listing, "error": werr.Error()})
		}
	}

	m, err := ParseText(strings.NewReader(text), models.SHA512)
	if err != nil {
		return nil, err
	}
	m.Format = models.FormatVendorPDF
	return m, nil
}
