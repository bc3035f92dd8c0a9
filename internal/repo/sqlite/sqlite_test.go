package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/repo"
	"github.com/geopack/bundler/internal/repo/sqlite"
	"github.com/geopack/bundler/internal/repo/test"
	rtest "github.com/geopack/bundler/internal/test"
)

func TestSqliteStore(t *testing.T) {
	s := &test.Suite{
		Create: func(t testing.TB) repo.Store {
			store, err := sqlite.Open(filepath.Join(rtest.TempDir(t), "jobs.db"))
			rtest.OK(t, err)
			return store
		},
	}
	s.RunTests(t)
}

// Reopening the same file must find the previously persisted jobs.
func TestSqliteReopen(t *testing.T) {
	ctx := context.TODO()
	path := filepath.Join(rtest.TempDir(t), "jobs.db")

	job := &bundler.Job{
		ID:       "4F1E2D3C4B5A6981",
		UserName: "carpenter",
		State:    bundler.StateComplete,
		Type:     bundler.ArchiveTar,
	}

	store, err := sqlite.Open(path)
	rtest.OK(t, err)
	rtest.OK(t, store.PersistJob(ctx, job))
	rtest.OK(t, store.Close())

	store, err = sqlite.Open(path)
	rtest.OK(t, err)
	defer func() {
		rtest.OK(t, store.Close())
	}()

	got, err := store.GetJob(ctx, job.ID)
	rtest.OK(t, err)
	rtest.Equals(t, job.UserName, got.UserName)
	rtest.Equals(t, job.State, got.State)
}
