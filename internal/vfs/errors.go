package vfs

import (
	"context"

	"github.com/geopack/bundler/internal/errors"
)

// Sentinel errors returned by providers. Wrapped forms are recognized
// via errors.Is.
var (
	// ErrNotFound is returned when a file or bucket does not exist.
	ErrNotFound = errors.New("file does not exist")

	// ErrPermission is returned when the provider denies access.
	ErrPermission = errors.New("permission denied")

	// ErrSchemeUnsupported is returned for locations whose scheme has no
	// registered provider.
	ErrSchemeUnsupported = errors.New("unsupported scheme")
)

func errSchemeUnsupported(scheme string) error {
	return errors.Wrapf(ErrSchemeUnsupported, "scheme %q", scheme)
}

// IsTransient reports whether an operation that failed with err may
// succeed when retried. Missing files, denied access, unknown schemes
// and canceled contexts are permanent; anything else is assumed to be a
// temporary condition of the underlying storage.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission) || errors.Is(err, ErrSchemeUnsupported) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
