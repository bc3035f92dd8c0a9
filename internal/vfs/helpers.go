package vfs

import (
	"context"

	"github.com/geopack/bundler/internal/errors"
)

// Exists checks whether a file is present at loc.
func Exists(ctx context.Context, fs FS, loc Location) (bool, error) {
	_, err := fs.Stat(ctx, loc)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveIfExists deletes the file at loc, ignoring a missing file.
func RemoveIfExists(ctx context.Context, fs FS, loc Location) error {
	err := fs.Remove(ctx, loc)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
