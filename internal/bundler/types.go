// Package bundler defines the domain model shared by the job pipeline:
// jobs, archives, file entries, their states, and the request/response
// messages exchanged with clients.
package bundler

import (
	"strings"

	"github.com/geopack/bundler/internal/errors"
)

// BytesPerMegabyte converts the MB-based configuration values into bytes.
const BytesPerMegabyte = 1 << 20

// DefaultUserName is recorded when the submitter cannot be identified.
const DefaultUserName = "unavailable"

// JobState describes the lifecycle position of a job, an archive, or a
// single file entry. The string form is the canonical text used in JSON
// and in the persistence layer.
type JobState string

const (
	StateNotStarted     JobState = "NOT_STARTED"
	StateInProgress     JobState = "IN_PROGRESS"
	StateComplete       JobState = "COMPLETE"
	StateError          JobState = "ERROR"
	StateInvalidRequest JobState = "INVALID_REQUEST"
	StateNotAvailable   JobState = "NOT_AVAILABLE"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == StateComplete || s == StateError
}

// ParseJobState converts the canonical text form back into a JobState.
func ParseJobState(s string) (JobState, error) {
	state := JobState(strings.ToUpper(strings.TrimSpace(s)))
	switch state {
	case StateNotStarted, StateInProgress, StateComplete, StateError,
		StateInvalidRequest, StateNotAvailable:
		return state, nil
	}
	return "", errors.Errorf("unknown job state %q", s)
}

// ArchiveType selects the output container and, for the compressed-tar
// family, the compression pass that follows it.
type ArchiveType string

const (
	ArchiveZip   ArchiveType = "ZIP"
	ArchiveTar   ArchiveType = "TAR"
	ArchiveAr    ArchiveType = "AR"
	ArchiveCpio  ArchiveType = "CPIO"
	ArchiveGzip  ArchiveType = "GZIP"
	ArchiveBzip2 ArchiveType = "BZIP2"
	ArchiveZstd  ArchiveType = "ZSTD"
	ArchiveLz4   ArchiveType = "LZ4"
	ArchiveXz    ArchiveType = "XZ"
)

// ParseArchiveType converts the request text form into an ArchiveType.
func ParseArchiveType(s string) (ArchiveType, error) {
	typ := ArchiveType(strings.ToUpper(strings.TrimSpace(s)))
	switch typ {
	case ArchiveZip, ArchiveTar, ArchiveAr, ArchiveCpio, ArchiveGzip,
		ArchiveBzip2, ArchiveZstd, ArchiveLz4, ArchiveXz:
		return typ, nil
	}
	return "", errors.Errorf("unknown archive type %q", s)
}

// Extension returns the file extension (without leading dot) enforced on
// the final output artifact.
func (t ArchiveType) Extension() string {
	switch t {
	case ArchiveZip:
		return "zip"
	case ArchiveTar:
		return "tar"
	case ArchiveAr:
		return "ar"
	case ArchiveCpio:
		return "cpio"
	case ArchiveGzip:
		return "tar.gz"
	case ArchiveBzip2:
		return "tar.bz2"
	case ArchiveZstd:
		return "tar.zst"
	case ArchiveLz4:
		return "tar.lz4"
	case ArchiveXz:
		return "tar.xz"
	}
	return strings.ToLower(string(t))
}

// CompressedTar reports whether the type is produced as an intermediate
// tar container followed by a whole-file compression pass.
func (t ArchiveType) CompressedTar() bool {
	switch t {
	case ArchiveGzip, ArchiveBzip2, ArchiveZstd, ArchiveLz4, ArchiveXz:
		return true
	}
	return false
}

// Compressing reports whether the output is smaller than its input on
// typical data; the estimator keys off this.
func (t ArchiveType) Compressing() bool {
	return t == ArchiveZip || t.CompressedTar()
}

// HashType selects the digest algorithm written next to each archive.
// The string form doubles as the digest file extension.
type HashType string

const (
	HashMD5    HashType = "md5"
	HashSHA1   HashType = "sha1"
	HashSHA256 HashType = "sha256"
	HashSHA384 HashType = "sha384"
	HashSHA512 HashType = "sha512"
)

// ParseHashType converts the configuration text form into a HashType.
func ParseHashType(s string) (HashType, error) {
	ht := HashType(strings.ToLower(strings.TrimSpace(s)))
	switch ht {
	case HashMD5, HashSHA1, HashSHA256, HashSHA384, HashSHA512:
		return ht, nil
	}
	return "", errors.Errorf("unknown hash type %q", s)
}

// Extension returns the digest file extension (without leading dot).
func (h HashType) Extension() string {
	return string(h)
}
