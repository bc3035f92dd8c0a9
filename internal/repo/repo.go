// Package repo defines the persistence contract for the job entity
// tree. Two implementations exist: mem (default) and sqlite.
package repo

import (
	"context"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
)

// ErrNotFound is returned for lookups of entities that were never
// persisted. Wrap it so the caller can still see which key missed.
var ErrNotFound = errors.New("entity not found")

// Store persists jobs, archives and file entries. Implementations must
// be safe for concurrent use. Getters return copies the caller may
// mutate freely; updates write only the level they name.
type Store interface {
	// PersistJob stores a complete entity tree: the job, its archives
	// and their entries. Entry order within an archive is preserved.
	PersistJob(ctx context.Context, job *bundler.Job) error

	// GetJob loads the full tree for jobID.
	GetJob(ctx context.Context, jobID string) (*bundler.Job, error)

	// GetArchive loads one archive row including its entries.
	GetArchive(ctx context.Context, jobID string, archiveID int64) (*bundler.ArchiveJob, error)

	// GetFileEntry loads one entry row, keyed by its source path.
	GetFileEntry(ctx context.Context, jobID string, archiveID int64, path string) (*bundler.FileEntry, error)

	// UpdateJob rewrites the job-level fields of an existing job. The
	// archive list on the argument is ignored.
	UpdateJob(ctx context.Context, job *bundler.Job) error

	// UpdateArchive rewrites the archive-level fields of an existing
	// archive row. The entry list on the argument is ignored.
	UpdateArchive(ctx context.Context, archive *bundler.ArchiveJob) error

	// UpdateFileEntryState sets the state of a single entry.
	UpdateFileEntryState(ctx context.Context, jobID string, archiveID int64, path string, state bundler.JobState) error

	// ListJobIDs returns the ids of all persisted jobs in lexical order.
	ListJobIDs(ctx context.Context) ([]string, error)

	// Close releases the underlying store.
	Close() error
}
