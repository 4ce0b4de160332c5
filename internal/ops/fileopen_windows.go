//go:build windows

package ops

import (
	"os"

	"github.com/deskforge/deskcfg/internal/errors"
)

// openFileNoFollowRead opens an article table for reading.
// O_NOFOLLOW is not available on Windows; ValidateCatalogPath rejects symlinks.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}
