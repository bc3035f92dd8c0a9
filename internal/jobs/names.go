// Package jobs implements the bundling pipeline behind the HTTP
// surface: the dispatcher that turns a request into a persisted job,
// the workers that each produce one archive, and the tracker that folds
// worker completions back into the job record.
package jobs

import (
	"fmt"
	"path"
	"strings"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/vfs"
)

// DefaultTemplate names output artifacts when the request carries no
// output_filename.
const DefaultTemplate = "data_archive"

// Template reduces a requested output filename to the artifact name
// template. Directory components are dropped, and anything after the
// last dot counts as an extension and is cut off; the enforced archive
// extension is appended later by the Namer.
func Template(outputFilename string) string {
	name := strings.ReplaceAll(strings.TrimSpace(outputFilename), "\\", "/")
	name = path.Base(name)
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		name = name[:dot]
	}
	if name == "" || name == "." || name == "/" {
		return DefaultTemplate
	}
	return name
}

// Namer derives the artifact and digest locations for a job's archives
// below the staging directory.
type Namer struct {
	staging  vfs.Location
	hashType bundler.HashType
}

// NewNamer returns a Namer rooted at the staging directory.
func NewNamer(stagingDirectory string, hashType bundler.HashType) *Namer {
	return &Namer{staging: vfs.Parse(stagingDirectory), hashType: hashType}
}

// JobDir returns the directory holding every artifact of a job.
func (n *Namer) JobDir(jobID string) vfs.Location {
	return n.staging.Join(jobID)
}

// Artifact returns the output location for one archive of a job.
func (n *Namer) Artifact(jobID string, archiveID int64, template string, typ bundler.ArchiveType) vfs.Location {
	name := fmt.Sprintf("%s_%d.%s", template, archiveID, typ.Extension())
	return n.JobDir(jobID).Join(name)
}

// HashSibling returns the digest location written next to an artifact:
// the artifact path minus its last extension, plus the digest
// extension. A compressed tar keeps its inner extension, so
// bundle_0.tar.gz sits next to bundle_0.tar.sha1.
func (n *Namer) HashSibling(artifact vfs.Location) vfs.Location {
	artifact.Path = strings.TrimSuffix(artifact.Path, path.Ext(artifact.Path)) +
		"." + n.hashType.Extension()
	return artifact
}
