package jobs

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/archive"
	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/metrics"
	"github.com/geopack/bundler/internal/repo"
)

// entryListener returns the callback a worker hands to its bundler. It
// marks file entries COMPLETE as their bytes land in the archive. Store
// failures are logged and swallowed; a lost progress update must not
// abort the archive.
func entryListener(ctx context.Context, store repo.Store, jobID string, archiveID int64) archive.OnEntry {
	return func(el bundler.ArchiveElement) {
		metrics.EntriesBundled.Inc()
		metrics.BytesBundled.Add(float64(el.Size))

		err := store.UpdateFileEntryState(ctx, jobID, archiveID, el.Path, bundler.StateComplete)
		if err != nil {
			log.WithFields(log.Fields{
				"job":     jobID,
				"archive": archiveID,
				"path":    el.Path,
			}).WithError(err).Warn("failed to mark file entry complete")
		}
	}
}
