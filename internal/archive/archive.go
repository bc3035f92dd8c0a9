// Package archive writes groups of source files into a single output
// container. Every supported container format implements the Bundler
// interface; New selects the implementation for an archive type.
//
// The compressed tar family (tar.gz, tar.bz2, tar.zst, tar.lz4, tar.xz)
// is produced in two passes: the plain tar bundler writes an
// intermediate .tar next to the final artifact, then a second streaming
// pass compresses it into place and removes the intermediate.
package archive

import (
	"bufio"
	"context"
	"io"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// copyBufferSize is used both for the per-entry copy buffer and for
// buffering writes to the output artifact.
const copyBufferSize = 8 * 1024

// OnEntry is called once per element, after the element's bytes have
// been handed to the container writer.
type OnEntry func(el bundler.ArchiveElement)

// A Bundler writes source files into a single output artifact.
type Bundler interface {
	// Bundle writes all elements into the artifact at out, in input
	// order. A pre-existing artifact at out is removed first. On error
	// a partial artifact may remain.
	Bundle(ctx context.Context, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry) error
}

// New returns the Bundler producing artifacts of the given type.
func New(typ bundler.ArchiveType, fsys vfs.FS) (Bundler, error) {
	switch typ {
	case bundler.ArchiveZip:
		return &zipBundler{fsys: fsys}, nil
	case bundler.ArchiveTar:
		return &tarBundler{fsys: fsys}, nil
	case bundler.ArchiveAr:
		return &arBundler{fsys: fsys}, nil
	case bundler.ArchiveCpio:
		return &cpioBundler{fsys: fsys}, nil
	case bundler.ArchiveGzip, bundler.ArchiveBzip2, bundler.ArchiveZstd,
		bundler.ArchiveLz4, bundler.ArchiveXz:
		return &compressedTar{fsys: fsys, typ: typ}, nil
	}
	return nil, errors.Errorf("archive: unsupported archive type %q", typ)
}

// container adapts one archive format's writer to the shared entry loop.
type container interface {
	// add begins a new entry and returns the writer for its bytes.
	add(el bundler.ArchiveElement) (io.Writer, error)
	// finish writes any trailing container metadata. It does not close
	// the underlying writer.
	finish() error
}

// write streams every element through a fresh container into out.
func write(ctx context.Context, fsys vfs.FS, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry, build func(io.Writer) (container, error)) error {
	if err := vfs.RemoveIfExists(ctx, fsys, out); err != nil {
		return err
	}

	f, err := fsys.Create(ctx, out)
	if err != nil {
		return err
	}

	debug.Log("writing %d entries to %v", len(elements), out)

	bw := bufio.NewWriterSize(f, copyBufferSize)
	c, err := build(bw)
	if err != nil {
		_ = f.Close()
		return err
	}

	buf := make([]byte, copyBufferSize)
	for _, el := range elements {
		if err := addElement(ctx, fsys, c, el, buf); err != nil {
			_ = f.Close()
			return err
		}
		if onEntry != nil {
			onEntry(el)
		}
	}

	if err := c.finish(); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "Flush")
	}
	return errors.Wrap(f.Close(), "Close")
}

func addElement(ctx context.Context, fsys vfs.FS, c container, el bundler.ArchiveElement, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := c.add(el)
	if err != nil {
		return err
	}

	src, err := fsys.Open(ctx, vfs.Parse(el.Path))
	if err != nil {
		return err
	}

	if _, err := io.CopyBuffer(w, src, buf); err != nil {
		_ = src.Close()
		return errors.Wrapf(err, "copy %v", el.Path)
	}
	return errors.Wrap(src.Close(), "Close")
}
