package jobs

import (
	"time"

	"github.com/geopack/bundler/internal/bundler"
)

// Snapshot derives the client-facing progress message from a persisted
// job. Every counter is recomputed from the entity tree at call time,
// so a snapshot is accurate even between tracker refreshes.
func Snapshot(job *bundler.Job, now time.Time) *bundler.TrackerMessage {
	msg := &bundler.TrackerMessage{
		JobID:       job.ID,
		UserName:    job.UserName,
		State:       job.State,
		Threads:     job.NumArchives,
		NumFiles:    job.NumFiles,
		Size:        job.Size,
		ElapsedTime: elapsed(job.StartTime, job.EndTime, now),
		Archives:    []*bundler.ArchiveJob{},
	}

	for _, arch := range job.Archives {
		for _, e := range arch.Entries {
			if e.State == bundler.StateComplete {
				msg.FilesComplete++
				msg.SizeComplete += e.Size
			}
		}

		if !arch.State.Terminal() {
			continue
		}
		msg.ThreadsComplete++

		// The message carries the archive rows without their entries;
		// per-file detail stays internal.
		head := *arch
		head.Entries = nil
		msg.Archives = append(msg.Archives, &head)
	}

	if msg.FilesComplete > msg.NumFiles {
		msg.FilesComplete = msg.NumFiles
	}
	if msg.SizeComplete > msg.Size {
		msg.SizeComplete = msg.Size
	}

	// One digest per archive, written by the same worker.
	msg.HashesComplete = msg.ThreadsComplete
	return msg
}

// elapsed returns the job runtime in milliseconds: up to endTime once
// the job is closed, up to now while it runs, zero before it starts.
func elapsed(startTime, endTime int64, now time.Time) int64 {
	if startTime == 0 {
		return 0
	}
	end := endTime
	if end == 0 {
		end = now.UnixMilli()
	}
	return end - startTime
}
