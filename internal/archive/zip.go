package archive

import (
	"archive/zip"
	"context"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

type zipBundler struct {
	fsys vfs.FS
}

func (b *zipBundler) Bundle(ctx context.Context, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry) error {
	return write(ctx, b.fsys, elements, out, onEntry, newZipContainer)
}

type zipContainer struct {
	zw *zip.Writer
}

func newZipContainer(w io.Writer) (container, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return &zipContainer{zw: zw}, nil
}

func (c *zipContainer) add(el bundler.ArchiveElement) (io.Writer, error) {
	header := &zip.FileHeader{
		Name:               el.EntryPath,
		Method:             zip.Deflate,
		Modified:           time.Now(),
		UncompressedSize64: uint64(el.Size),
	}
	header.SetMode(0644)

	w, err := c.zw.CreateHeader(header)
	if err != nil {
		return nil, errors.Wrap(err, "ZipHeader")
	}
	return w, nil
}

func (c *zipContainer) finish() error {
	return errors.Wrap(c.zw.Close(), "Close")
}
