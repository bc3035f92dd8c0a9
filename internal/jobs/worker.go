package jobs

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/archive"
	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/hashing"
	"github.com/geopack/bundler/internal/metrics"
	"github.com/geopack/bundler/internal/repo"
	"github.com/geopack/bundler/internal/vfs"
)

// Worker produces a single archive end to end: it claims the archive
// row, streams the entries into the artifact, writes the digest sibling
// and reports the terminal state to the tracker.
type Worker struct {
	store    repo.Store
	fsys     vfs.FS
	tracker  *Tracker
	hashType bundler.HashType

	jobID     string
	archiveID int64
}

// NewWorker returns a Worker for one archive of a job.
func NewWorker(store repo.Store, fsys vfs.FS, tracker *Tracker, hashType bundler.HashType, jobID string, archiveID int64) *Worker {
	return &Worker{
		store:     store,
		fsys:      fsys,
		tracker:   tracker,
		hashType:  hashType,
		jobID:     jobID,
		archiveID: archiveID,
	}
}

// Run executes the archive. Failures end in a terminal ERROR state
// rather than an error return, and the tracker is notified either way.
// Only a store that is unreachable at claim time makes the worker exit
// without a notification, since no state change is possible then.
func (w *Worker) Run(ctx context.Context) {
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	logger := log.WithFields(log.Fields{"job": w.jobID, "archive": w.archiveID})

	arch, err := w.claim(ctx)
	if err != nil {
		logger.WithError(err).Error("cannot claim archive, giving up")
		return
	}

	start := time.Now()
	state := bundler.StateComplete
	if err := w.produce(ctx, arch); err != nil {
		logger.WithError(err).Error("archive failed")
		state = bundler.StateError
	}

	w.finish(ctx, state)
	logger.WithFields(log.Fields{"state": state, "took": time.Since(start)}).
		Info("archive finished")
}

// claim loads the archive row and marks it IN_PROGRESS under this
// host's name.
func (w *Worker) claim(ctx context.Context) (*bundler.ArchiveJob, error) {
	arch, err := w.store.GetArchive(ctx, w.jobID, w.archiveID)
	if err != nil {
		return nil, err
	}

	arch.HostName = hostname()
	arch.StartTime = time.Now().UnixMilli()
	arch.State = bundler.StateInProgress
	if err := w.store.UpdateArchive(ctx, arch); err != nil {
		return nil, err
	}
	return arch, nil
}

// produce bundles the entries into the artifact and writes the digest
// file next to it.
func (w *Worker) produce(ctx context.Context, arch *bundler.ArchiveJob) error {
	bnd, err := archive.New(arch.Type, w.fsys)
	if err != nil {
		return err
	}

	elements := make([]bundler.ArchiveElement, 0, len(arch.Entries))
	for _, e := range arch.Entries {
		elements = append(elements, bundler.ArchiveElement{
			Path:      e.Path,
			EntryPath: e.EntryPath,
			Size:      e.Size,
		})
	}

	out := vfs.Parse(arch.Archive)
	onEntry := entryListener(ctx, w.store, w.jobID, w.archiveID)
	if err := bnd.Bundle(ctx, elements, out, onEntry); err != nil {
		return err
	}

	return hashing.DigestToFile(ctx, w.fsys, out, vfs.Parse(arch.Hash), w.hashType)
}

// finish closes out the archive row and notifies the tracker. Store
// failures here are logged only; the notification still fires so the
// job can terminate.
func (w *Worker) finish(ctx context.Context, state bundler.JobState) {
	logger := log.WithFields(log.Fields{"job": w.jobID, "archive": w.archiveID})

	arch, err := w.store.GetArchive(ctx, w.jobID, w.archiveID)
	if err != nil {
		logger.WithError(err).Error("cannot load archive for its final update")
	} else {
		arch.State = state
		arch.EndTime = time.Now().UnixMilli()

		if state == bundler.StateComplete {
			info, err := w.fsys.Stat(ctx, vfs.Parse(arch.Archive))
			if err != nil {
				logger.WithError(err).Warn("cannot determine artifact size")
			} else {
				arch.ArchiveSize = info.Size
			}
		}

		if err := w.store.UpdateArchive(ctx, arch); err != nil {
			logger.WithError(err).Error("failed to persist terminal archive state")
		}
	}

	metrics.ArchivesCompleted.WithLabelValues(string(state)).Inc()
	w.tracker.Notify(ctx, w.archiveID)
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
