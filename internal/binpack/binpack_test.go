package binpack_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/geopack/bundler/internal/binpack"
	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/estimate"
	rtest "github.com/geopack/bundler/internal/test"
)

const mb = bundler.BytesPerMegabyte

func elements(sizes ...int64) []bundler.ArchiveElement {
	els := make([]bundler.ArchiveElement, 0, len(sizes))
	for i, size := range sizes {
		els = append(els, bundler.ArchiveElement{
			Path:      fmt.Sprintf("/data/f%02d", i),
			EntryPath: fmt.Sprintf("data/f%02d", i),
			Size:      size,
		})
	}
	return els
}

// shape returns the element count per archive.
func shape(archives [][]bundler.ArchiveElement) []int {
	var counts []int
	for _, a := range archives {
		counts = append(counts, len(a))
	}
	return counts
}

func TestPackAcrossBoundary(t *testing.T) {
	// 40+40 fit below 100, the third file starts a new archive
	est := estimate.New(0)
	got := binpack.Pack(elements(40*mb, 40*mb, 40*mb), 100*mb, bundler.ArchiveZip, est)
	rtest.Equals(t, []int{2, 1}, shape(got))

	// order preserved
	rtest.Equals(t, "/data/f00", got[0][0].Path)
	rtest.Equals(t, "/data/f01", got[0][1].Path)
	rtest.Equals(t, "/data/f02", got[1][0].Path)
}

func TestPackOversizeFile(t *testing.T) {
	est := estimate.New(0)
	got := binpack.Pack(elements(500*mb), 100*mb, bundler.ArchiveTar, est)
	rtest.Equals(t, []int{1}, shape(got))

	// oversize in the middle still forms its own archive
	got = binpack.Pack(elements(10*mb, 500*mb, 10*mb), 100*mb, bundler.ArchiveTar, est)
	rtest.Equals(t, []int{1, 1, 1}, shape(got))
}

func TestPackEmptyInput(t *testing.T) {
	est := estimate.New(25)
	got := binpack.Pack(nil, 100*mb, bundler.ArchiveZip, est)
	rtest.Equals(t, 0, len(got))
}

func TestPackSingleArchive(t *testing.T) {
	est := estimate.New(0)
	got := binpack.Pack(elements(10*mb, 20*mb, 30*mb), 100*mb, bundler.ArchiveZip, est)
	rtest.Equals(t, []int{3}, shape(got))
}

func TestPackUsesEstimatedSize(t *testing.T) {
	// with 50% compression two 60MB files fit a 100MB target,
	// uncompressed they do not
	est := estimate.New(50)
	got := binpack.Pack(elements(60*mb, 60*mb), 100*mb, bundler.ArchiveZip, est)
	rtest.Equals(t, []int{2}, shape(got))

	got = binpack.Pack(elements(60*mb, 60*mb), 100*mb, bundler.ArchiveTar, est)
	rtest.Equals(t, []int{1, 1}, shape(got))
}

func TestPackExactBoundary(t *testing.T) {
	// reaching the target exactly starts a new archive
	est := estimate.New(0)
	got := binpack.Pack(elements(50*mb, 50*mb), 100*mb, bundler.ArchiveTar, est)
	rtest.Equals(t, []int{1, 1}, shape(got))
}

func TestPackDeterministic(t *testing.T) {
	est := estimate.New(25)
	input := elements(40*mb, 15*mb, 90*mb, 5*mb, 120*mb, 33*mb, 7*mb)

	first := binpack.Pack(input, 100*mb, bundler.ArchiveZip, est)
	for i := 0; i < 10; i++ {
		again := binpack.Pack(input, 100*mb, bundler.ArchiveZip, est)
		rtest.Assert(t, reflect.DeepEqual(first, again), "packing not deterministic on run %d", i)
	}
}
