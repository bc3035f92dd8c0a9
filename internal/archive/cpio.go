package archive

import (
	"context"
	"io"
	"time"

	"github.com/cavaliergopher/cpio"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

type cpioBundler struct {
	fsys vfs.FS
}

func (b *cpioBundler) Bundle(ctx context.Context, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry) error {
	return write(ctx, b.fsys, elements, out, onEntry, newCpioContainer)
}

type cpioContainer struct {
	cw *cpio.Writer
}

func newCpioContainer(w io.Writer) (container, error) {
	return &cpioContainer{cw: cpio.NewWriter(w)}, nil
}

func (c *cpioContainer) add(el bundler.ArchiveElement) (io.Writer, error) {
	header := &cpio.Header{
		Name:    el.EntryPath,
		Mode:    0644,
		Size:    el.Size,
		ModTime: time.Now(),
	}

	if err := c.cw.WriteHeader(header); err != nil {
		return nil, errors.Wrap(err, "CpioHeader")
	}
	return c.cw, nil
}

// finish writes the trailer record that terminates a cpio stream.
func (c *cpioContainer) finish() error {
	return errors.Wrap(c.cw.Close(), "Close")
}
