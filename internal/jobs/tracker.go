package jobs

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/repo"
)

// Tracker folds archive completions back into the owning job row. One
// Tracker exists per running job. Notify is serialized by a mutex so
// the read-modify-write of the job row never interleaves, whatever
// order the workers finish in.
type Tracker struct {
	m     sync.Mutex
	store repo.Store
	jobID string
}

// NewTracker returns a Tracker bound to jobID.
func NewTracker(store repo.Store, jobID string) *Tracker {
	return &Tracker{store: store, jobID: jobID}
}

// Notify records that an archive reached a terminal state and refreshes
// the job aggregates. Once every archive is terminal the job itself is
// closed out as COMPLETE; an ERROR archive counts toward termination,
// the per-archive states tell the full story.
func (t *Tracker) Notify(ctx context.Context, archiveID int64) {
	t.m.Lock()
	defer t.m.Unlock()

	debug.Log("job %v: archive %d finished", t.jobID, archiveID)

	job, err := t.store.GetJob(ctx, t.jobID)
	if err != nil {
		log.WithField("job", t.jobID).WithError(err).
			Error("tracker cannot load job")
		return
	}

	arch := job.Archive(archiveID)
	if arch == nil {
		log.WithFields(log.Fields{"job": t.jobID, "archive": archiveID}).
			Error("tracker notified for unknown archive")
		return
	}

	// The worker persists the terminal state before notifying, but that
	// write may not be visible yet. Close the row here, unless it
	// already carries a terminal state of its own.
	if !arch.State.Terminal() {
		log.WithFields(log.Fields{"job": t.jobID, "archive": archiveID, "state": arch.State}).
			Warn("archive finished before its terminal update landed, closing the row")
		arch.State = bundler.StateComplete
		arch.EndTime = time.Now().UnixMilli()
		if err := t.store.UpdateArchive(ctx, arch); err != nil {
			log.WithFields(log.Fields{"job": t.jobID, "archive": archiveID}).
				WithError(err).Error("failed to persist archive close-out")
		}
	}

	t.refresh(ctx, job)
}

// refresh recomputes the job aggregates from the loaded tree and
// persists them. The caller holds the tracker lock.
func (t *Tracker) refresh(ctx context.Context, job *bundler.Job) {
	var filesComplete, sizeComplete, archivesDone int64
	for _, arch := range job.Archives {
		if arch.State.Terminal() {
			archivesDone++
		}
		for _, e := range arch.Entries {
			if e.State == bundler.StateComplete {
				filesComplete++
				sizeComplete += e.Size
			}
		}
	}

	if filesComplete > job.NumFiles {
		log.WithFields(log.Fields{"job": job.ID, "have": filesComplete, "want": job.NumFiles}).
			Warn("completed file count exceeds the job total, clamping")
		filesComplete = job.NumFiles
	}
	if sizeComplete > job.Size {
		log.WithFields(log.Fields{"job": job.ID, "have": sizeComplete, "want": job.Size}).
			Warn("completed size exceeds the job total, clamping")
		sizeComplete = job.Size
	}

	job.FilesComplete = filesComplete
	job.SizeComplete = sizeComplete
	job.ArchivesComplete = archivesDone

	if archivesDone == job.NumArchives && !job.State.Terminal() {
		debug.Log("job %v: all %d archives terminal", job.ID, archivesDone)
		job.State = bundler.StateComplete
		job.EndTime = time.Now().UnixMilli()
		log.WithFields(log.Fields{"job": job.ID, "archives": job.NumArchives}).
			Info("job complete")
	}

	if err := t.store.UpdateJob(ctx, job); err != nil {
		log.WithField("job", job.ID).WithError(err).
			Error("failed to persist job progress")
	}
}
