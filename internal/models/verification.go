package models

import "time"

// HashAlgorithm names the digest used for a manifest.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "SHA256"
	SHA512 HashAlgorithm = "SHA512"
)

// ManifestFormat records how a manifest was read.
type ManifestFormat string

const (
	FormatText      ManifestFormat = "text"
	FormatCSV       ManifestFormat = "csv"
	FormatVendorPDF ManifestFormat = "vendor_pdf"
)

// HashManifest maps whitespace-stripped file names to expected hashes.
type HashManifest struct {
	Path      string            `json:"path"`
	Format    ManifestFormat    `json:"format"`
	Algorithm HashAlgorithm     `json:"algorithm"`
	Entries   map[string]string `json:"entries"`
	// Duplicates lists names declared more than once; the last value is kept.
	Duplicates []string `json:"duplicates,omitempty"`
}

// Lookup returns the expected hash for name.
func (m *HashManifest) Lookup(name string) (string, bool) {
	h, ok := m.Entries[name]
	return h, ok && h != ""
}

// Classification is the verification outcome for one file.
type Classification string

const (
	Verified     Classification = "verified"
	Collision    Classification = "collision"
	HashNotFound Classification = "hash_not_found"
)

// MissingHashMarker is shown in place of an absent expected hash.
const MissingHashMarker = "- - - -"

// FileReport is the outcome of checking one candidate file.
type FileReport struct {
	Path           string         `json:"path"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	ExpectedHash   string         `json:"expected_hash"`
	ComputedHash   string         `json:"computed_hash"`
	Error          string         `json:"error,omitempty"`
}

// Failed reports whether the file counts towards collisions.
func (f FileReport) Failed() bool {
	return f.Classification != Verified
}

// VerificationReport aggregates a verification run.
type VerificationReport struct {
	RunID        string        `json:"run_id"`
	Folder       string        `json:"folder"`
	ManifestPath string        `json:"manifest_path"`
	Algorithm    HashAlgorithm `json:"algorithm"`
	HashesCount  int           `json:"hashes_count"`
	// Files is in completion order.
	Files      []FileReport `json:"files"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// VerifiedFiles is the number of candidate files processed.
func (r *VerificationReport) VerifiedFiles() int {
	return len(r.Files)
}

// Collisions counts files that were not verified, missing hashes included.
func (r *VerificationReport) Collisions() int {
	n := 0
	for _, f := range r.Files {
		if f.Failed() {
			n++
		}
	}
	return n
}

// Successes counts verified files.
func (r *VerificationReport) Successes() int {
	return r.VerifiedFiles() - r.Collisions()
}

// MissingFiles reports whether the manifest declares more hashes than files checked.
func (r *VerificationReport) MissingFiles() bool {
	return r.HashesCount > r.VerifiedFiles()
}

// RunSummary is a stored verification run.
type RunSummary struct {
	ID            string        `json:"id"`
	Folder        string        `json:"folder"`
	ManifestPath  string        `json:"manifest_path"`
	Algorithm     HashAlgorithm `json:"algorithm"`
	HashesCount   int           `json:"hashes_count"`
	VerifiedFiles int           `json:"verified_files"`
	Collisions    int           `json:"collisions"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}
