package retry

import (
	"context"
	"testing"

	"github.com/geopack/bundler/internal/errors"
	rtest "github.com/geopack/bundler/internal/test"
	"github.com/geopack/bundler/internal/vfs"
	"github.com/geopack/bundler/internal/vfs/mem"
)

// failingFS wraps a file system and fails the first failStat Stat and
// the first failWalk Walk calls with a transient error.
type failingFS struct {
	vfs.FS
	failStat  int
	failWalk  int
	statCalls int
	walkCalls int
}

func (f *failingFS) Stat(ctx context.Context, loc vfs.Location) (vfs.Info, error) {
	f.statCalls++
	if f.statCalls <= f.failStat {
		return vfs.Info{}, errors.New("injected error")
	}
	return f.FS.Stat(ctx, loc)
}

func (f *failingFS) Walk(ctx context.Context, loc vfs.Location, fn vfs.WalkFunc) error {
	f.walkCalls++
	if f.walkCalls <= f.failWalk {
		// report one file, then fail
		err := fn(vfs.Location{Scheme: "mem", Bucket: loc.Bucket, Path: "in/a"}, 1)
		if err != nil {
			return err
		}
		return errors.New("injected error")
	}
	return f.FS.Walk(ctx, loc, fn)
}

func memWithFiles(t testing.TB, paths map[string]string) *mem.Mem {
	t.Helper()
	be := mem.New()
	for path, content := range paths {
		w, err := be.Create(context.Background(), vfs.Location{Scheme: "mem", Bucket: "b", Path: path})
		rtest.OK(t, err)
		_, err = w.Write([]byte(content))
		rtest.OK(t, err)
		rtest.OK(t, w.Close())
	}
	return be
}

func TestRetryStatTransient(t *testing.T) {
	TestFastRetries(t)

	be := memWithFiles(t, map[string]string{"f": "xyz"})
	flaky := &failingFS{FS: be, failStat: 2}

	var successRetries int
	retryFS := New(flaky, 0, nil, func(msg string, retries int) {
		successRetries = retries
	})

	fi, err := retryFS.Stat(context.Background(), vfs.Location{Scheme: "mem", Bucket: "b", Path: "f"})
	rtest.OK(t, err)
	rtest.Equals(t, int64(3), fi.Size)
	rtest.Equals(t, 3, flaky.statCalls)
	rtest.Equals(t, 2, successRetries)
}

func TestRetryStatPermanent(t *testing.T) {
	TestFastRetries(t)

	be := memWithFiles(t, nil)
	flaky := &failingFS{FS: be}
	retryFS := New(flaky, 0, nil, nil)

	_, err := retryFS.Stat(context.Background(), vfs.Location{Scheme: "mem", Bucket: "b", Path: "missing"})
	rtest.Assert(t, errors.Is(err, vfs.ErrNotFound), "expected ErrNotFound, got %v", err)
	rtest.Equals(t, 1, flaky.statCalls)
}

func TestRetryWalkNoDuplicates(t *testing.T) {
	TestFastRetries(t)

	be := memWithFiles(t, map[string]string{"in/a": "1", "in/b": "22"})
	flaky := &failingFS{FS: be, failWalk: 1}
	retryFS := New(flaky, 0, nil, nil)

	seen := make(map[string]int)
	err := retryFS.Walk(context.Background(), vfs.Location{Scheme: "mem", Bucket: "b", Path: "in"}, func(loc vfs.Location, size int64) error {
		seen[loc.Path]++
		return nil
	})
	rtest.OK(t, err)
	rtest.Equals(t, map[string]int{"in/a": 1, "in/b": 1}, seen)
	rtest.Equals(t, 2, flaky.walkCalls)
}

func TestRetryWalkCallbackError(t *testing.T) {
	TestFastRetries(t)

	be := memWithFiles(t, map[string]string{"in/a": "1"})
	retryFS := New(be, 0, nil, nil)

	boom := errors.New("boom")
	err := retryFS.Walk(context.Background(), vfs.Location{Scheme: "mem", Bucket: "b", Path: "in"}, func(loc vfs.Location, size int64) error {
		return boom
	})
	rtest.Assert(t, errors.Is(err, boom), "expected callback error, got %v", err)
}

func TestRetryCanceledContext(t *testing.T) {
	TestFastRetries(t)

	be := memWithFiles(t, map[string]string{"f": "x"})
	retryFS := New(be, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retryFS.Stat(ctx, vfs.Location{Scheme: "mem", Bucket: "b", Path: "f"})
	rtest.Assert(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}
