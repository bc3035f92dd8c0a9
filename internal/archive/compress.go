package archive

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// compressedTar bundles the elements into an intermediate tar next to
// the final artifact, compresses it whole, and removes the intermediate.
// Entry callbacks fire during the tar pass.
type compressedTar struct {
	fsys vfs.FS
	typ  bundler.ArchiveType
}

func (b *compressedTar) Bundle(ctx context.Context, elements []bundler.ArchiveElement, out vfs.Location, onEntry OnEntry) error {
	tmp := b.intermediate(out)

	plain := &tarBundler{fsys: b.fsys}
	if err := plain.Bundle(ctx, elements, tmp, onEntry); err != nil {
		return err
	}

	if err := b.compress(ctx, tmp, out); err != nil {
		return err
	}
	return b.fsys.Remove(ctx, tmp)
}

// intermediate returns the sibling .tar location the first pass writes.
func (b *compressedTar) intermediate(out vfs.Location) vfs.Location {
	out.Path = strings.TrimSuffix(out.Path, "."+b.typ.Extension()) + ".tar"
	return out
}

func (b *compressedTar) compress(ctx context.Context, in, out vfs.Location) error {
	debug.Log("compressing %v to %v", in, out)

	if err := vfs.RemoveIfExists(ctx, b.fsys, out); err != nil {
		return err
	}

	src, err := b.fsys.Open(ctx, in)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := b.fsys.Create(ctx, out)
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(dst, copyBufferSize)
	cw, err := newCompressor(bw, b.typ)
	if err != nil {
		_ = dst.Close()
		return err
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(cw, src, buf); err != nil {
		_ = cw.Close()
		_ = dst.Close()
		return errors.Wrapf(err, "compress %v", in)
	}
	if err := cw.Close(); err != nil {
		_ = dst.Close()
		return errors.Wrap(err, "Close")
	}
	if err := bw.Flush(); err != nil {
		_ = dst.Close()
		return errors.Wrap(err, "Flush")
	}
	return errors.Wrap(dst.Close(), "Close")
}

// newCompressor wraps w in the stream encoder for the archive type.
func newCompressor(w io.Writer, typ bundler.ArchiveType) (io.WriteCloser, error) {
	switch typ {
	case bundler.ArchiveGzip:
		return gzip.NewWriter(w), nil
	case bundler.ArchiveBzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	case bundler.ArchiveZstd:
		return zstd.NewWriter(w)
	case bundler.ArchiveLz4:
		return lz4.NewWriter(w), nil
	case bundler.ArchiveXz:
		return xz.NewWriter(w)
	}
	return nil, errors.Errorf("archive: no compressor for type %q", typ)
}
