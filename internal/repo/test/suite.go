// Package test provides the contract suite every repo.Store
// implementation must pass.
package test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/repo"
	rtest "github.com/geopack/bundler/internal/test"
)

// Suite runs the contract tests against stores produced by Create.
type Suite struct {
	// Create returns a fresh, empty store. The suite closes it when the
	// subtest ends.
	Create func(t testing.TB) repo.Store
}

// RunTests executes all contract tests as subtests of t.
func (s *Suite) RunTests(t *testing.T) {
	for _, tt := range []struct {
		name string
		fn   func(*testing.T, repo.Store)
	}{
		{"PersistAndGet", testPersistAndGet},
		{"GetMissing", testGetMissing},
		{"GetArchive", testGetArchive},
		{"GetFileEntry", testGetFileEntry},
		{"EntryOrder", testEntryOrder},
		{"UpdateJob", testUpdateJob},
		{"UpdateArchive", testUpdateArchive},
		{"UpdateFileEntryState", testUpdateFileEntryState},
		{"UpdateMissing", testUpdateMissing},
		{"ListJobIDs", testListJobIDs},
		{"Isolation", testIsolation},
	} {
		t.Run(tt.name, func(t *testing.T) {
			store := s.Create(t)
			defer func() {
				rtest.OK(t, store.Close())
			}()
			tt.fn(t, store)
		})
	}
}

// sampleJob builds a two archive tree shaped the way the dispatcher
// persists it at submission time. The entries of the first archive are
// deliberately not in lexical order.
func sampleJob(id string) *bundler.Job {
	return &bundler.Job{
		ID:          id,
		UserName:    "carpenter",
		State:       bundler.StateNotStarted,
		Type:        bundler.ArchiveZip,
		NumArchives: 2,
		NumFiles:    3,
		Size:        1300,
		Archives: []*bundler.ArchiveJob{
			{
				JobID:     id,
				ArchiveID: 0,
				State:     bundler.StateNotStarted,
				Type:      bundler.ArchiveZip,
				Archive:   "/stage/" + id + "/data_archive_0.zip",
				Hash:      "/stage/" + id + "/data_archive_0.sha1",
				NumFiles:  2,
				Size:      800,
				Entries: []*bundler.FileEntry{
					{JobID: id, ArchiveID: 0, Path: "/data/zulu.tif", EntryPath: "data/zulu.tif", Size: 500, State: bundler.StateNotStarted},
					{JobID: id, ArchiveID: 0, Path: "/data/alpha.tif", EntryPath: "data/alpha.tif", Size: 300, State: bundler.StateNotStarted},
				},
			},
			{
				JobID:     id,
				ArchiveID: 1,
				State:     bundler.StateNotStarted,
				Type:      bundler.ArchiveZip,
				Archive:   "/stage/" + id + "/data_archive_1.zip",
				Hash:      "/stage/" + id + "/data_archive_1.sha1",
				NumFiles:  1,
				Size:      500,
				Entries: []*bundler.FileEntry{
					{JobID: id, ArchiveID: 1, Path: "/data/mike.tif", EntryPath: "data/mike.tif", Size: 500, State: bundler.StateNotStarted},
				},
			},
		},
	}
}

func testPersistAndGet(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	want := sampleJob("4F1E2D3C4B5A6978")
	rtest.OK(t, store.PersistJob(ctx, want))

	got, err := store.GetJob(ctx, want.ID)
	rtest.OK(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("loaded job differs (-want +got):\n%s", diff)
	}
}

func testGetMissing(t *testing.T, store repo.Store) {
	ctx := context.TODO()

	_, err := store.GetJob(ctx, "0000000000000000")
	rtest.Assert(t, errors.Is(err, repo.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testGetArchive(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	want := sampleJob("4F1E2D3C4B5A6979")
	rtest.OK(t, store.PersistJob(ctx, want))

	got, err := store.GetArchive(ctx, want.ID, 1)
	rtest.OK(t, err)
	if diff := cmp.Diff(want.Archives[1], got); diff != "" {
		t.Fatalf("loaded archive differs (-want +got):\n%s", diff)
	}

	_, err = store.GetArchive(ctx, want.ID, 99)
	rtest.Assert(t, errors.Is(err, repo.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testGetFileEntry(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A697A")
	rtest.OK(t, store.PersistJob(ctx, job))

	got, err := store.GetFileEntry(ctx, job.ID, 0, "/data/alpha.tif")
	rtest.OK(t, err)
	rtest.Equals(t, "data/alpha.tif", got.EntryPath)
	rtest.Equals(t, int64(300), got.Size)
	rtest.Equals(t, bundler.StateNotStarted, got.State)

	_, err = store.GetFileEntry(ctx, job.ID, 0, "/data/missing.tif")
	rtest.Assert(t, errors.Is(err, repo.ErrNotFound), "expected ErrNotFound, got %v", err)
}

// The worker bundles entries in the order they were planned, so the
// store must not reorder them.
func testEntryOrder(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A697B")
	rtest.OK(t, store.PersistJob(ctx, job))

	got, err := store.GetArchive(ctx, job.ID, 0)
	rtest.OK(t, err)

	paths := make([]string, 0, len(got.Entries))
	for _, e := range got.Entries {
		paths = append(paths, e.Path)
	}
	rtest.Equals(t, []string{"/data/zulu.tif", "/data/alpha.tif"}, paths)
}

func testUpdateJob(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A697C")
	rtest.OK(t, store.PersistJob(ctx, job))

	update := *job
	update.State = bundler.StateInProgress
	update.StartTime = 1700000000000
	update.FilesComplete = 1
	update.SizeComplete = 300
	update.Archives = nil // must be ignored
	rtest.OK(t, store.UpdateJob(ctx, &update))

	got, err := store.GetJob(ctx, job.ID)
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateInProgress, got.State)
	rtest.Equals(t, int64(1700000000000), got.StartTime)
	rtest.Equals(t, int64(1), got.FilesComplete)
	rtest.Equals(t, int64(300), got.SizeComplete)
	rtest.Equals(t, 2, len(got.Archives))
	rtest.Equals(t, 2, len(got.Archives[0].Entries))
}

func testUpdateArchive(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A697D")
	rtest.OK(t, store.PersistJob(ctx, job))

	update := *job.Archives[0]
	update.State = bundler.StateComplete
	update.HostName = "worker-1"
	update.StartTime = 1700000000000
	update.EndTime = 1700000004000
	update.FilesComplete = 2
	update.SizeComplete = 800
	update.ArchiveSize = 4096
	update.Entries = nil // must be ignored
	rtest.OK(t, store.UpdateArchive(ctx, &update))

	got, err := store.GetArchive(ctx, job.ID, 0)
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateComplete, got.State)
	rtest.Equals(t, "worker-1", got.HostName)
	rtest.Equals(t, int64(1700000004000), got.EndTime)
	rtest.Equals(t, int64(4096), got.ArchiveSize)
	rtest.Equals(t, 2, len(got.Entries))
}

func testUpdateFileEntryState(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A697E")
	rtest.OK(t, store.PersistJob(ctx, job))

	rtest.OK(t, store.UpdateFileEntryState(ctx, job.ID, 0, "/data/zulu.tif", bundler.StateComplete))

	got, err := store.GetFileEntry(ctx, job.ID, 0, "/data/zulu.tif")
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateComplete, got.State)

	other, err := store.GetFileEntry(ctx, job.ID, 0, "/data/alpha.tif")
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateNotStarted, other.State)
}

func testUpdateMissing(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A697F")
	rtest.OK(t, store.PersistJob(ctx, job))

	ghost := sampleJob("FFFFFFFFFFFFFFFF")
	err := store.UpdateJob(ctx, ghost)
	rtest.Assert(t, errors.Is(err, repo.ErrNotFound), "expected ErrNotFound, got %v", err)

	archive := *job.Archives[0]
	archive.ArchiveID = 99
	err = store.UpdateArchive(ctx, &archive)
	rtest.Assert(t, errors.Is(err, repo.ErrNotFound), "expected ErrNotFound, got %v", err)

	err = store.UpdateFileEntryState(ctx, job.ID, 0, "/data/missing.tif", bundler.StateComplete)
	rtest.Assert(t, errors.Is(err, repo.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testListJobIDs(t *testing.T, store repo.Store) {
	ctx := context.TODO()

	ids, err := store.ListJobIDs(ctx)
	rtest.OK(t, err)
	rtest.Equals(t, 0, len(ids))

	rtest.OK(t, store.PersistJob(ctx, sampleJob("BBBBBBBBBBBBBBBB")))
	rtest.OK(t, store.PersistJob(ctx, sampleJob("AAAAAAAAAAAAAAAA")))

	ids, err = store.ListJobIDs(ctx)
	rtest.OK(t, err)
	rtest.Equals(t, []string{"AAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBB"}, ids)
}

// Stores hand out copies; mutating a loaded tree must not leak into the
// stored one.
func testIsolation(t *testing.T, store repo.Store) {
	ctx := context.TODO()
	job := sampleJob("4F1E2D3C4B5A6980")
	rtest.OK(t, store.PersistJob(ctx, job))

	loaded, err := store.GetJob(ctx, job.ID)
	rtest.OK(t, err)
	loaded.State = bundler.StateError
	loaded.Archives[0].State = bundler.StateError
	loaded.Archives[0].Entries[0].State = bundler.StateError

	fresh, err := store.GetJob(ctx, job.ID)
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateNotStarted, fresh.State)
	rtest.Equals(t, bundler.StateNotStarted, fresh.Archives[0].State)
	rtest.Equals(t, bundler.StateNotStarted, fresh.Archives[0].Entries[0].State)
}
