// Package local implements the provider for files on local disk.
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// Local serves the "file" scheme straight from the operating system.
type Local struct{}

// New returns a provider for local files.
func New() *Local {
	return &Local{}
}

func (*Local) Scheme() string {
	return "file"
}

// mapError converts os errors into the vfs sentinels where one applies.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return errors.Wrap(vfs.ErrNotFound, err.Error())
	case errors.Is(err, os.ErrPermission):
		return errors.Wrap(vfs.ErrPermission, err.Error())
	}
	return errors.WithStack(err)
}

func (*Local) Open(_ context.Context, loc vfs.Location) (io.ReadCloser, error) {
	debug.Log("Open %v", loc.Path)
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

func (*Local) Create(_ context.Context, loc vfs.Location) (io.WriteCloser, error) {
	debug.Log("Create %v", loc.Path)
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0755); err != nil {
		return nil, mapError(err)
	}
	f, err := os.Create(loc.Path)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

func (*Local) Stat(_ context.Context, loc vfs.Location) (vfs.Info, error) {
	fi, err := os.Stat(loc.Path)
	if err != nil {
		return vfs.Info{}, mapError(err)
	}
	return vfs.Info{Size: fi.Size(), Dir: fi.IsDir()}, nil
}

func (*Local) Remove(_ context.Context, loc vfs.Location) error {
	debug.Log("Remove %v", loc.Path)
	return mapError(os.Remove(loc.Path))
}

func (*Local) MkdirAll(_ context.Context, loc vfs.Location) error {
	return mapError(os.MkdirAll(loc.Path, 0755))
}

// Walk reports every regular file below loc.Path. Symlinks and other
// irregular entries are skipped.
func (*Local) Walk(ctx context.Context, loc vfs.Location, fn vfs.WalkFunc) error {
	err := filepath.WalkDir(loc.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		return fn(vfs.Location{Scheme: "file", Path: path}, fi.Size())
	})
	return mapError(err)
}
