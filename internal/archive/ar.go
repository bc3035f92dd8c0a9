package archive

import (
	"context"
	"io"
	"time"

	"github.com/blakesmith/ar"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// arNameLength is the size of the name field in the common ar header.
// The format has no extension mechanism for longer names, so entries
// that do not fit are rejected.
const arNameLength = 16

type arBundler struct {
	fsys vfs.FS
}

func (b *arBundler) Bundle(ctx context.Context, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry) error {
	return write(ctx, b.fsys, elements, out, onEntry, newArContainer)
}

type arContainer struct {
	w   io.Writer
	aw  *ar.Writer
	pad bool
}

func newArContainer(w io.Writer) (container, error) {
	aw := ar.NewWriter(w)
	if err := aw.WriteGlobalHeader(); err != nil {
		return nil, errors.Wrap(err, "ArHeader")
	}
	return &arContainer{w: w, aw: aw}, nil
}

func (c *arContainer) add(el bundler.ArchiveElement) (io.Writer, error) {
	if err := c.align(); err != nil {
		return nil, err
	}

	if len(el.EntryPath) > arNameLength {
		return nil, errors.Errorf("ar: entry name %q exceeds %d characters", el.EntryPath, arNameLength)
	}

	header := &ar.Header{
		Name:    el.EntryPath,
		ModTime: time.Now(),
		Mode:    0644,
		Size:    el.Size,
	}

	if err := c.aw.WriteHeader(header); err != nil {
		return nil, errors.Wrap(err, "ArHeader")
	}
	c.pad = el.Size%2 == 1
	return c.aw, nil
}

// align pads the previous data section to the two byte boundary the
// format requires; the library leaves that to the caller.
func (c *arContainer) align() error {
	if !c.pad {
		return nil
	}
	c.pad = false
	_, err := io.WriteString(c.w, "\n")
	return errors.Wrap(err, "ArPad")
}

func (c *arContainer) finish() error {
	return c.align()
}
