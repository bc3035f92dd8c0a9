package bundler_test

import (
	"testing"

	"github.com/geopack/bundler/internal/bundler"
	rtest "github.com/geopack/bundler/internal/test"
)

func TestParseArchiveType(t *testing.T) {
	var tests = []struct {
		in      string
		typ     bundler.ArchiveType
		invalid bool
	}{
		{in: "ZIP", typ: bundler.ArchiveZip},
		{in: "zip", typ: bundler.ArchiveZip},
		{in: " tar ", typ: bundler.ArchiveTar},
		{in: "AR", typ: bundler.ArchiveAr},
		{in: "cpio", typ: bundler.ArchiveCpio},
		{in: "gzip", typ: bundler.ArchiveGzip},
		{in: "BZIP2", typ: bundler.ArchiveBzip2},
		{in: "zstd", typ: bundler.ArchiveZstd},
		{in: "lz4", typ: bundler.ArchiveLz4},
		{in: "xz", typ: bundler.ArchiveXz},
		{in: "", invalid: true},
		{in: "rar", invalid: true},
		{in: "tar.gz", invalid: true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			typ, err := bundler.ParseArchiveType(test.in)
			if test.invalid {
				rtest.Assert(t, err != nil, "expected error for %q", test.in)
				return
			}
			rtest.OK(t, err)
			rtest.Equals(t, test.typ, typ)
		})
	}
}

func TestArchiveTypeExtension(t *testing.T) {
	var tests = []struct {
		typ bundler.ArchiveType
		ext string
	}{
		{bundler.ArchiveZip, "zip"},
		{bundler.ArchiveTar, "tar"},
		{bundler.ArchiveAr, "ar"},
		{bundler.ArchiveCpio, "cpio"},
		{bundler.ArchiveGzip, "tar.gz"},
		{bundler.ArchiveBzip2, "tar.bz2"},
		{bundler.ArchiveZstd, "tar.zst"},
		{bundler.ArchiveLz4, "tar.lz4"},
		{bundler.ArchiveXz, "tar.xz"},
	}

	for _, test := range tests {
		rtest.Equals(t, test.ext, test.typ.Extension())
	}
}

func TestArchiveTypeCompressedTar(t *testing.T) {
	for _, typ := range []bundler.ArchiveType{
		bundler.ArchiveGzip, bundler.ArchiveBzip2, bundler.ArchiveZstd,
		bundler.ArchiveLz4, bundler.ArchiveXz,
	} {
		rtest.Assert(t, typ.CompressedTar(), "%v must be a compressed tar type", typ)
		rtest.Assert(t, typ.Compressing(), "%v must be a compressing type", typ)
	}

	for _, typ := range []bundler.ArchiveType{
		bundler.ArchiveTar, bundler.ArchiveAr, bundler.ArchiveCpio,
	} {
		rtest.Assert(t, !typ.CompressedTar(), "%v must not be a compressed tar type", typ)
		rtest.Assert(t, !typ.Compressing(), "%v must not be a compressing type", typ)
	}

	rtest.Assert(t, !bundler.ArchiveZip.CompressedTar(), "zip must not be a compressed tar type")
	rtest.Assert(t, bundler.ArchiveZip.Compressing(), "zip must be a compressing type")
}

func TestParseJobState(t *testing.T) {
	for _, state := range []bundler.JobState{
		bundler.StateNotStarted, bundler.StateInProgress, bundler.StateComplete,
		bundler.StateError, bundler.StateInvalidRequest, bundler.StateNotAvailable,
	} {
		parsed, err := bundler.ParseJobState(string(state))
		rtest.OK(t, err)
		rtest.Equals(t, state, parsed)
	}

	_, err := bundler.ParseJobState("DONE")
	rtest.Assert(t, err != nil, "expected error for unknown state")
}

func TestJobStateTerminal(t *testing.T) {
	rtest.Assert(t, bundler.StateComplete.Terminal(), "COMPLETE is terminal")
	rtest.Assert(t, bundler.StateError.Terminal(), "ERROR is terminal")
	rtest.Assert(t, !bundler.StateNotStarted.Terminal(), "NOT_STARTED is not terminal")
	rtest.Assert(t, !bundler.StateInProgress.Terminal(), "IN_PROGRESS is not terminal")
	rtest.Assert(t, !bundler.StateInvalidRequest.Terminal(), "INVALID_REQUEST is not terminal")
}

func TestParseHashType(t *testing.T) {
	for _, ht := range []bundler.HashType{
		bundler.HashMD5, bundler.HashSHA1, bundler.HashSHA256,
		bundler.HashSHA384, bundler.HashSHA512,
	} {
		parsed, err := bundler.ParseHashType(string(ht))
		rtest.OK(t, err)
		rtest.Equals(t, ht, parsed)
	}

	parsed, err := bundler.ParseHashType(" SHA1 ")
	rtest.OK(t, err)
	rtest.Equals(t, bundler.HashSHA1, parsed)

	_, err = bundler.ParseHashType("crc32")
	rtest.Assert(t, err != nil, "expected error for unknown hash type")
}
