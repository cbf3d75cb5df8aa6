// Package pdfutil configures the PDF library shared by the manifest reader
// and the report writer.
package pdfutil

import (
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
)

var (
	mu         sync.Mutex
	configured string
)

// Configure installs the metered license key. Calling it again with the
// same key is a no-op; an empty key leaves the library unlicensed.
func Configure(key string) error {
	mu.Lock()
	defer mu.Unlock()

	if key == "" || key == configured {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "invalid pdf license key", err)
	}
	configured = key
	return nil
}
