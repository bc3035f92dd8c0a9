// Package entrypath computes the path a source file is stored under
// inside an archive.
//
// The entry path starts as the path component of the source location.
// Configured prefix exclusions are stripped, an optional base directory
// is removed, an optional replacement prefix is prepended, and the
// result is cut down to at most MaxLength characters by dropping leading
// path segments and, as a last resort, truncating the filename while
// keeping its extension.
package entrypath

import (
	"path/filepath"
	"strings"

	"github.com/geopack/bundler/internal/vfs"
)

// MaxLength is the longest entry path written into an archive.
const MaxLength = 100

// Normalizer computes entry paths using a fixed set of prefix
// exclusions.
type Normalizer struct {
	exclusions []string
}

// New returns a Normalizer with the given prefix exclusions. Empty
// exclusions are dropped.
func New(exclusions []string) *Normalizer {
	var cleaned []string
	for _, e := range exclusions {
		if e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return &Normalizer{exclusions: cleaned}
}

// Normalize computes the entry path for source.
func (n *Normalizer) Normalize(source string) string {
	return n.NormalizeWithBase(source, "", "")
}

// NormalizeWithBase computes the entry path for source. A non-empty
// baseDir is stripped from the front after the exclusions; a non-empty
// archivePath is prepended as a replacement prefix, with exactly one
// separator in between.
func (n *Normalizer) NormalizeWithBase(source, baseDir, archivePath string) string {
	entry := filepath.ToSlash(vfs.Parse(source).Path)

	for _, exclusion := range n.exclusions {
		if strings.HasPrefix(entry, exclusion) {
			entry = entry[len(exclusion):]
		}
	}

	if baseDir != "" {
		baseDir = filepath.ToSlash(baseDir)
		if strings.HasPrefix(entry, baseDir) {
			entry = entry[len(baseDir):]
		}
	}

	if archivePath != "" {
		entry = strings.TrimSuffix(filepath.ToSlash(archivePath), "/") +
			"/" + strings.TrimPrefix(entry, "/")
	}

	entry = strings.TrimPrefix(entry, "/")

	return enforceLengthLimit(entry)
}

func enforceLengthLimit(path string) string {
	for len(path) > MaxLength {
		if idx := strings.IndexByte(path, '/'); idx >= 0 {
			path = path[idx+1:]
			continue
		}
		path = truncateFilename(path)
	}
	return path
}

// truncateFilename cuts a too-long filename down to MaxLength while
// keeping its extension.
func truncateFilename(name string) string {
	ext := extension(name)
	if len(ext) >= MaxLength {
		return ext[len(ext)-MaxLength:]
	}
	return name[:MaxLength-len(ext)] + ext
}

// extension returns the dot-suffix of the last path element, including
// the dot. A dot at the start of the element does not begin an
// extension.
func extension(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return ""
	}
	dir := strings.LastIndexByte(path, '/')
	if dir < 0 && dot == 0 {
		return ""
	}
	if dir >= 0 && dir > dot {
		return ""
	}
	return path[dot:]
}
