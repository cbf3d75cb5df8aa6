// Package uuid issues and checks verification run identifiers.
package uuid

import (
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// ParseRunID normalizes s and rejects anything that is not a v4 UUID in
// canonical dashed form.
func ParseRunID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 36 {
		return "", apperrors.New(apperrors.ErrInvalid, "invalid run id: "+s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalid, "invalid run id: "+s, err)
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return "", apperrors.New(apperrors.ErrInvalid, "run id is not a v4 uuid: "+s)
	}
	return id.String(), nil
}
