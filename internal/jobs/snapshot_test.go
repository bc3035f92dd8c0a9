package jobs_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/jobs"
	rtest "github.com/geopack/bundler/internal/test"
)

// snapshotJob is a job caught in the middle: the first archive is done,
// the second still runs with one of its two entries copied.
func snapshotJob() *bundler.Job {
	return &bundler.Job{
		ID:          "J1",
		UserName:    "kestrel",
		State:       bundler.StateInProgress,
		Type:        bundler.ArchiveZip,
		NumArchives: 2,
		NumFiles:    4,
		Size:        400,
		StartTime:   20_000,
		Archives: []*bundler.ArchiveJob{
			{
				JobID: "J1", ArchiveID: 0, State: bundler.StateComplete,
				Type: bundler.ArchiveZip, Archive: "/staging/J1/bundle_0.zip",
				NumFiles: 2, Size: 150, ArchiveSize: 90,
				HostName: "worker-a", StartTime: 20_100, EndTime: 29_000,
				Entries: []*bundler.FileEntry{
					{JobID: "J1", ArchiveID: 0, Path: "/data/a", Size: 100, State: bundler.StateComplete},
					{JobID: "J1", ArchiveID: 0, Path: "/data/b", Size: 50, State: bundler.StateComplete},
				},
			},
			{
				JobID: "J1", ArchiveID: 1, State: bundler.StateInProgress,
				Type: bundler.ArchiveZip, Archive: "/staging/J1/bundle_1.zip",
				NumFiles: 2, Size: 250,
				HostName: "worker-a", StartTime: 20_100,
				Entries: []*bundler.FileEntry{
					{JobID: "J1", ArchiveID: 1, Path: "/data/c", Size: 200, State: bundler.StateComplete},
					{JobID: "J1", ArchiveID: 1, Path: "/data/d", Size: 50, State: bundler.StateNotStarted},
				},
			},
		},
	}
}

func TestSnapshot(t *testing.T) {
	job := snapshotJob()
	msg := jobs.Snapshot(job, time.UnixMilli(50_000))

	want := &bundler.TrackerMessage{
		JobID:           "J1",
		UserName:        "kestrel",
		State:           bundler.StateInProgress,
		Threads:         2,
		ThreadsComplete: 1,
		HashesComplete:  1,
		NumFiles:        4,
		FilesComplete:   3,
		Size:            400,
		SizeComplete:    350,
		ElapsedTime:     30_000,
		Archives: []*bundler.ArchiveJob{
			{
				JobID: "J1", ArchiveID: 0, State: bundler.StateComplete,
				Type: bundler.ArchiveZip, Archive: "/staging/J1/bundle_0.zip",
				NumFiles: 2, Size: 150, ArchiveSize: 90,
				HostName: "worker-a", StartTime: 20_100, EndTime: 29_000,
			},
		},
	}

	if diff := cmp.Diff(want, msg); diff != "" {
		t.Fatalf("unexpected snapshot (-want +got):\n%s", diff)
	}

	// the source tree keeps its entries, only the message drops them
	rtest.Equals(t, 2, len(job.Archives[0].Entries))
}

func TestSnapshotIncludesFailedArchives(t *testing.T) {
	job := snapshotJob()
	job.Archives[1].State = bundler.StateError
	job.Archives[1].EndTime = 31_000

	msg := jobs.Snapshot(job, time.UnixMilli(50_000))

	// a failed archive finished its thread, and its row is reported
	rtest.Equals(t, int64(2), msg.ThreadsComplete)
	rtest.Equals(t, int64(2), msg.HashesComplete)
	rtest.Equals(t, 2, len(msg.Archives))
	rtest.Equals(t, bundler.StateError, msg.Archives[1].State)
}

func TestSnapshotElapsed(t *testing.T) {
	now := time.UnixMilli(50_000)

	// not yet started
	job := snapshotJob()
	job.StartTime = 0
	rtest.Equals(t, int64(0), jobs.Snapshot(job, now).ElapsedTime)

	// closed: the end time pins the value, however late the reader asks
	job = snapshotJob()
	job.State = bundler.StateComplete
	job.EndTime = 42_000
	rtest.Equals(t, int64(22_000), jobs.Snapshot(job, now).ElapsedTime)
}

func TestSnapshotClampsCounters(t *testing.T) {
	// totals recorded at submission win over runaway entry states
	job := snapshotJob()
	job.NumFiles = 2
	job.Size = 300

	msg := jobs.Snapshot(job, time.UnixMilli(50_000))
	rtest.Equals(t, int64(2), msg.FilesComplete)
	rtest.Equals(t, int64(300), msg.SizeComplete)
}

func TestSnapshotInvalidRequest(t *testing.T) {
	job := &bundler.Job{
		ID:       "J2",
		UserName: bundler.DefaultUserName,
		State:    bundler.StateInvalidRequest,
		Archives: []*bundler.ArchiveJob{},
	}

	msg := jobs.Snapshot(job, time.Now())
	rtest.Equals(t, bundler.StateInvalidRequest, msg.State)
	rtest.Equals(t, int64(0), msg.ElapsedTime)
	rtest.Equals(t, 0, len(msg.Archives))
}
