package archive

import (
	"archive/tar"
	"context"
	"io"
	"time"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

type tarBundler struct {
	fsys vfs.FS
}

func (b *tarBundler) Bundle(ctx context.Context, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry) error {
	return write(ctx, b.fsys, elements, out, onEntry, newTarContainer)
}

type tarContainer struct {
	tw *tar.Writer
}

func newTarContainer(w io.Writer) (container, error) {
	return &tarContainer{tw: tar.NewWriter(w)}, nil
}

func (c *tarContainer) add(el bundler.ArchiveElement) (io.Writer, error) {
	// Entry paths are already limited to 100 characters, so the headers
	// stay within the plain ustar name field.
	header := &tar.Header{
		Name:     el.EntryPath,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     el.Size,
		ModTime:  time.Now(),
	}

	if err := c.tw.WriteHeader(header); err != nil {
		return nil, errors.Wrap(err, "TarHeader")
	}
	return c.tw, nil
}

func (c *tarContainer) finish() error {
	return errors.Wrap(c.tw.Close(), "Close")
}
