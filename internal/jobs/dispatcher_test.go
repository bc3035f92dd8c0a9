package jobs_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/jobs"
	repomem "github.com/geopack/bundler/internal/repo/mem"
	rtest "github.com/geopack/bundler/internal/test"
)

func testOptions() jobs.Options {
	return jobs.Options{
		StagingDirectory:      "mem://staging/bundles",
		StagingDirectoryBase:  "mem://staging/bundles",
		BaseURL:               "https://dl.example.com/bundles",
		MinArchiveSize:        1,
		MaxArchiveSize:        100,
		DefaultArchiveSize:    1,
		CompressionPercentage: 0,
		HashType:              bundler.HashSHA1,
	}
}

func TestSubmitSingleFile(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}
	d := jobs.NewDispatcher(testOptions(), store, fsys, group)

	writeSource(t, fsys, "mem://data/field/observations.csv", "lat,lon,value\n")

	job, err := d.Submit(context.TODO(), "J1", &bundler.BundleRequest{
		Files:          []bundler.FileRequest{{Path: "mem://data/field/observations.csv"}},
		OutputFilename: "field.zip",
		UserName:       "kestrel",
	})
	rtest.OK(t, err)

	rtest.Equals(t, "J1", job.ID)
	rtest.Equals(t, "kestrel", job.UserName)
	rtest.Equals(t, bundler.ArchiveZip, job.Type)
	rtest.Equals(t, int64(1), job.NumArchives)
	rtest.Equals(t, int64(1), job.NumFiles)
	rtest.Equals(t, int64(14), job.Size)

	arch := job.Archives[0]
	rtest.Equals(t, "mem://staging/bundles/J1/field_0.zip", arch.Archive)
	rtest.Equals(t, "https://dl.example.com/bundles/J1/field_0.zip", arch.ArchiveURL)
	rtest.Equals(t, "mem://staging/bundles/J1/field_0.sha1", arch.Hash)
	rtest.Equals(t, "https://dl.example.com/bundles/J1/field_0.sha1", arch.HashURL)
	rtest.Equals(t, "field/observations.csv", arch.Entries[0].EntryPath)

	rtest.OK(t, group.Wait())

	job, err = store.GetJob(context.TODO(), "J1")
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateComplete, job.State)
	rtest.Equals(t, int64(1), job.FilesComplete)
	rtest.Equals(t, int64(14), job.SizeComplete)
	rtest.Assert(t, job.StartTime > 0, "job start time not set")
	rtest.Assert(t, job.EndTime >= job.StartTime, "job end time not set")

	// the artifact is a readable zip carrying the normalized entry path
	buf := readStored(t, fsys, arch.Archive)
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	rtest.OK(t, err)
	rtest.Equals(t, 1, len(zr.File))
	rtest.Equals(t, "field/observations.csv", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	rtest.OK(t, err)
	content, err := io.ReadAll(rc)
	rtest.OK(t, err)
	rtest.OK(t, rc.Close())
	rtest.Equals(t, "lat,lon,value\n", string(content))

	// the digest sibling was written
	rtest.Equals(t, 40, len(readStored(t, fsys, arch.Hash)))
}

func TestSubmitPacksBySize(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}
	d := jobs.NewDispatcher(testOptions(), store, fsys, group)

	// three 400 KiB files against the 1 MB default: two fit, the third
	// starts a second archive
	sources := []string{
		"mem://data/tiles/t0.dat",
		"mem://data/tiles/t1.dat",
		"mem://data/tiles/t2.dat",
	}
	files := make([]bundler.FileRequest, 0, len(sources))
	for i, p := range sources {
		writeSource(t, fsys, p, string(rtest.Random(i, 400*1024)))
		files = append(files, bundler.FileRequest{Path: p})
	}

	job, err := d.Submit(context.TODO(), "J2", &bundler.BundleRequest{
		Files:          files,
		Type:           "TAR",
		OutputFilename: "tiles",
	})
	rtest.OK(t, err)

	rtest.Equals(t, int64(2), job.NumArchives)
	rtest.Equals(t, int64(2), job.Archives[0].NumFiles)
	rtest.Equals(t, int64(1), job.Archives[1].NumFiles)
	rtest.Equals(t, "mem://staging/bundles/J2/tiles_0.tar", job.Archives[0].Archive)
	rtest.Equals(t, "mem://staging/bundles/J2/tiles_1.tar", job.Archives[1].Archive)
	rtest.Equals(t, bundler.DefaultUserName, job.UserName)

	rtest.OK(t, group.Wait())

	job, err = store.GetJob(context.TODO(), "J2")
	rtest.OK(t, err)
	rtest.Equals(t, bundler.StateComplete, job.State)
	rtest.Equals(t, int64(2), job.ArchivesComplete)
	rtest.Equals(t, int64(3), job.FilesComplete)
	rtest.Equals(t, job.Size, job.SizeComplete)
	for _, arch := range job.Archives {
		rtest.Equals(t, bundler.StateComplete, arch.State)
		rtest.Assert(t, arch.ArchiveSize > 0, "artifact size not recorded")
	}
}

func TestSubmitClampsRequestedSize(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}

	opts := testOptions()
	opts.MinArchiveSize = 2
	opts.MaxArchiveSize = 4
	opts.DefaultArchiveSize = 4
	d := jobs.NewDispatcher(opts, store, fsys, group)

	// two 1.5 MiB files: a 2 MB target splits them, a 4 MB target holds
	// both
	files := []bundler.FileRequest{
		{Path: "mem://data/big/one.dat"},
		{Path: "mem://data/big/two.dat"},
	}
	writeSource(t, fsys, files[0].Path, string(rtest.Random(10, 3<<19)))
	writeSource(t, fsys, files[1].Path, string(rtest.Random(11, 3<<19)))

	var tests = []struct {
		jobID        string
		maxSize      int64
		wantArchives int64
	}{
		{"J-low", 1, 2},    // below the minimum, raised to 2 MB
		{"J-high", 999, 1}, // above the maximum, capped at 4 MB
		{"J-none", 0, 1},   // absent, the 4 MB default applies
	}

	for _, test := range tests {
		job, err := d.Submit(context.TODO(), test.jobID, &bundler.BundleRequest{
			Files:   files,
			Type:    "TAR",
			MaxSize: test.maxSize,
		})
		rtest.OK(t, err)
		rtest.Equals(t, test.wantArchives, job.NumArchives)
	}

	rtest.OK(t, group.Wait())
}

func TestSubmitInvalidRequest(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}
	d := jobs.NewDispatcher(testOptions(), store, fsys, group)

	writeSource(t, fsys, "mem://data/ok.bin", "fine")

	var tests = []struct {
		name  string
		jobID string
		req   *bundler.BundleRequest
	}{
		{"no files", "J1", &bundler.BundleRequest{}},
		{"unknown type", "J2", &bundler.BundleRequest{
			Files: []bundler.FileRequest{{Path: "mem://data/ok.bin"}},
			Type:  "RAR",
		}},
		{"nothing readable", "J3", &bundler.BundleRequest{
			Files: []bundler.FileRequest{{Path: "mem://data/ghost.bin"}, {Path: "   "}},
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			job, err := d.Submit(context.TODO(), test.jobID, test.req)
			rtest.OK(t, err)
			rtest.Equals(t, bundler.StateInvalidRequest, job.State)
			rtest.Equals(t, bundler.DefaultUserName, job.UserName)
			rtest.Equals(t, int64(0), job.NumArchives)

			// the rejection is persisted for later state queries
			job, err = store.GetJob(context.TODO(), test.jobID)
			rtest.OK(t, err)
			rtest.Equals(t, bundler.StateInvalidRequest, job.State)
			rtest.Equals(t, 0, len(job.Archives))
		})
	}

	rtest.OK(t, group.Wait())
}

func TestSubmitDirectoryExpansion(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}
	d := jobs.NewDispatcher(testOptions(), store, fsys, group)

	writeSource(t, fsys, "mem://data/survey/a.txt", "alpha")
	writeSource(t, fsys, "mem://data/survey/sub/b.txt", "bravo")
	writeSource(t, fsys, "mem://data/readme.txt", "hello")

	job, err := d.Submit(context.TODO(), "J4", &bundler.BundleRequest{
		Files: []bundler.FileRequest{
			{Path: "mem://data/survey", ArchivePath: "maps"},
			{Path: "mem://data/readme.txt"},
			{Path: "mem://data/ghost.bin"}, // missing, logged and skipped
		},
		Type:           "TAR",
		OutputFilename: "survey.tar",
	})
	rtest.OK(t, err)

	rtest.Equals(t, int64(3), job.NumFiles)
	rtest.Equals(t, int64(1), job.NumArchives)

	rtest.OK(t, group.Wait())

	// walked files carry the replacement prefix, the plain file its own
	// normalized path
	buf := readStored(t, fsys, job.Archives[0].Archive)
	tr := tar.NewReader(bytes.NewReader(buf))

	got := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		rtest.OK(t, err)
		content, err := io.ReadAll(tr)
		rtest.OK(t, err)
		got[hdr.Name] = string(content)
	}
	rtest.Equals(t, map[string]string{
		"maps/a.txt":     "alpha",
		"maps/sub/b.txt": "bravo",
		"readme.txt":     "hello",
	}, got)
}

func TestSubmitArchivePathForFile(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}
	d := jobs.NewDispatcher(testOptions(), store, fsys, group)

	writeSource(t, fsys, "mem://data/field/observations.csv", "lat,lon\n")

	job, err := d.Submit(context.TODO(), "J5", &bundler.BundleRequest{
		Files: []bundler.FileRequest{
			{Path: "mem://data/field/observations.csv", ArchivePath: "dl"},
		},
	})
	rtest.OK(t, err)

	// archive_path replaces the directory part of the entry
	rtest.Equals(t, "dl/observations.csv", job.Archives[0].Entries[0].EntryPath)

	rtest.OK(t, group.Wait())
}

func TestSubmitEmptyBaseURL(t *testing.T) {
	fsys := memFS()
	store := repomem.New()
	group := &errgroup.Group{}

	opts := testOptions()
	opts.BaseURL = ""
	d := jobs.NewDispatcher(opts, store, fsys, group)

	writeSource(t, fsys, "mem://data/one.bin", "x")

	job, err := d.Submit(context.TODO(), "J6", &bundler.BundleRequest{
		Files: []bundler.FileRequest{{Path: "mem://data/one.bin"}},
	})
	rtest.OK(t, err)
	rtest.Equals(t, "", job.Archives[0].ArchiveURL)
	rtest.Equals(t, "", job.Archives[0].HashURL)

	rtest.OK(t, group.Wait())
}
