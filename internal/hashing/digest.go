// Package hashing reads hash manifests and computes file digests.
package hashing

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
	"strings"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
)

// DefaultChunkSize is the read size used when streaming files.
const DefaultChunkSize = 32 * 1024

var (
	sha256Expr = regexp.MustCompile(`\b[a-f0-9]{64}\b`)
	sha512Expr = regexp.MustCompile(`[0-9a-fA-F]{128}`)
)

// ExtractSHA256 returns the first lowercase SHA-256 digest in text.
func ExtractSHA256(text string) string {
	return sha256Expr.FindString(text)
}

// ExtractSHA512 returns the first SHA-512 digest in text.
func ExtractSHA512(text string) string {
	return sha512Expr.FindString(text)
}

// Extract dispatches to the extractor for alg.
func Extract(text string, alg models.HashAlgorithm) string {
	if alg == models.SHA512 {
		return ExtractSHA512(text)
	}
	return ExtractSHA256(text)
}

// ParseAlgorithm accepts sha256 / sha512 in any case.
func ParseAlgorithm(s string) (models.HashAlgorithm, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "SHA256", "":
		return models.SHA256, nil
	case "SHA512":
		return models.SHA512, nil
	}
	return "", apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unsupported hash algorithm %q", s))
}

func newHash(alg models.HashAlgorithm) hash.Hash {
	if alg == models.SHA512 {
		return sha512.New()
	}
	return sha256.New()
}

// HashFile streams path through alg in chunkSize reads and returns the
// lowercase hex digest.
func HashFile(path string, alg models.HashAlgorithm, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newHash(alg)
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
