package jobs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/repo"
)

// Recover closes out jobs left behind by an earlier process. Work that
// was in flight when the process died is never re-run: every archive
// still open is marked ERROR and the job row is closed through the
// usual tracker rules.
func Recover(ctx context.Context, store repo.Store) error {
	ids, err := store.ListJobIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "list jobs")
	}

	for _, id := range ids {
		job, err := store.GetJob(ctx, id)
		if err != nil {
			log.WithField("job", id).WithError(err).
				Error("recovery cannot load job, skipping")
			continue
		}
		if job.State != bundler.StateNotStarted && job.State != bundler.StateInProgress {
			continue
		}
		recoverJob(ctx, store, job)
	}
	return nil
}

// recoverJob fails every open archive of one interrupted job and closes
// the job row.
func recoverJob(ctx context.Context, store repo.Store, job *bundler.Job) {
	logger := log.WithField("job", job.ID)
	logger.WithField("state", job.State).Warn("closing job left over from a previous run")

	if len(job.Archives) == 0 {
		job.State = bundler.StateError
		job.EndTime = time.Now().UnixMilli()
		if err := store.UpdateJob(ctx, job); err != nil {
			logger.WithError(err).Error("cannot close interrupted job")
		}
		return
	}

	now := time.Now().UnixMilli()
	for _, arch := range job.Archives {
		if arch.State.Terminal() {
			continue
		}
		debug.Log("job %v: failing interrupted archive %d", job.ID, arch.ArchiveID)
		arch.State = bundler.StateError
		if arch.StartTime == 0 {
			arch.StartTime = now
		}
		arch.EndTime = now
		if err := store.UpdateArchive(ctx, arch); err != nil {
			logger.WithField("archive", arch.ArchiveID).WithError(err).
				Error("cannot persist archive failure")
		}
	}

	// With every row terminal a single notification closes the job.
	NewTracker(store, job.ID).Notify(ctx, job.Archives[0].ArchiveID)
}
