package httpd_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/httpd"
	"github.com/geopack/bundler/internal/jobs"
	repomem "github.com/geopack/bundler/internal/repo/mem"
	rtest "github.com/geopack/bundler/internal/test"
	"github.com/geopack/bundler/internal/vfs"
	vfsmem "github.com/geopack/bundler/internal/vfs/mem"
)

type testServer struct {
	srv   *httpd.Server
	store *repomem.Store
	group *errgroup.Group
	fsys  vfs.FS
}

func newTestServer(t testing.TB, opts httpd.Options) *testServer {
	store := repomem.New()
	fsys := vfs.NewSystem()
	fsys.Register(vfsmem.New())

	group, ctx := errgroup.WithContext(context.Background())

	dispatcher := jobs.NewDispatcher(jobs.Options{
		StagingDirectory:     "mem://staging/bundles",
		StagingDirectoryBase: "mem://staging/bundles",
		MinArchiveSize:       1,
		MaxArchiveSize:       100,
		DefaultArchiveSize:   1,
		HashType:             bundler.HashSHA1,
	}, store, fsys, group)

	return &testServer{
		srv:   httpd.New(ctx, opts, store, dispatcher, group),
		store: store,
		group: group,
		fsys:  fsys,
	}
}

// do runs one request through the routed handler. Header keys are set,
// not stored raw, so lookups see the same canonical form the net/http
// server would produce.
func (ts *testServer) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t testing.TB, rec *httptest.ResponseRecorder) *bundler.TrackerMessage {
	t.Helper()
	var msg bundler.TrackerMessage
	rtest.OK(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	return &msg
}

func writeSource(t testing.TB, fsys vfs.FS, path, content string) {
	w, err := fsys.Create(context.TODO(), vfs.Parse(path))
	rtest.OK(t, err)
	_, err = io.WriteString(w, content)
	rtest.OK(t, err)
	rtest.OK(t, w.Close())
}

func TestSubmitRoutes(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})
	writeSource(t, ts.fsys, "mem://data/notes.txt", "hello bundler")

	routes := []struct {
		path        string
		contentType string
	}{
		{"/BundleFilesJSON", "application/json"},
		{"/BundleFiles", "application/json"},
		{"/BundleFilesText", "text/plain"},
	}

	ids := make([]string, 0, len(routes))
	for _, route := range routes {
		body := `{"files": ["mem://data/notes.txt"], "type": "ZIP", "user_name": "dana"}`
		rec := ts.do("POST", route.path, body, map[string]string{"Content-Type": route.contentType})
		rtest.Equals(t, http.StatusOK, rec.Code)

		msg := decodeMessage(t, rec)
		rtest.Equals(t, bundler.StateNotStarted, msg.State)
		rtest.Equals(t, "dana", msg.UserName)
		rtest.Assert(t, len(msg.JobID) == 16, "unexpected job id %q on %v", msg.JobID, route.path)
		rtest.Equals(t, 0, len(msg.Archives))
		ids = append(ids, msg.JobID)
	}

	rtest.OK(t, ts.group.Wait())

	for _, id := range ids {
		job, err := ts.store.GetJob(context.TODO(), id)
		rtest.OK(t, err)
		rtest.Equals(t, bundler.StateComplete, job.State)
		rtest.Equals(t, int64(1), job.FilesComplete)
		rtest.Equals(t, int64(13), job.SizeComplete)
	}

	// the state route reports the finished job
	rec := ts.do("GET", "/GetState?job_id="+ids[0], "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)

	msg := decodeMessage(t, rec)
	rtest.Equals(t, bundler.StateComplete, msg.State)
	rtest.Equals(t, int64(1), msg.Threads)
	rtest.Equals(t, int64(1), msg.ThreadsComplete)
	rtest.Equals(t, int64(1), msg.HashesComplete)
	rtest.Equals(t, int64(13), msg.SizeComplete)
	rtest.Equals(t, 1, len(msg.Archives))
	rtest.Assert(t, msg.Archives[0].ArchiveSize > 0, "archive size missing from snapshot")
}

func TestSubmitUserFromHeader(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})

	var tests = []struct {
		name   string
		body   string
		header map[string]string
		want   string
	}{
		{"tls cn", `{"files": []}`, map[string]string{"X-SSL-Client-CN": "alice"}, "alice"},
		{"dn cn", `{"files": []}`, map[string]string{"SSL_CLIENT_S_DN_CN": "bob", "SM_USER": "carol"}, "bob"},
		{"sm user", `{"files": []}`, map[string]string{"SM_USER": "carol"}, "carol"},
		{"sm user cn", `{"files": []}`, map[string]string{"SM_USER_CN": "dave"}, "dave"},
		{"no identity", `{"files": []}`, nil, bundler.DefaultUserName},
		{"body wins", `{"files": [], "user_name": "erin"}`, map[string]string{"SM_USER": "carol"}, "erin"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := ts.do("POST", "/BundleFilesJSON", test.body, test.header)
			rtest.Equals(t, http.StatusOK, rec.Code)
			rtest.Equals(t, test.want, decodeMessage(t, rec).UserName)
		})
	}

	rtest.OK(t, ts.group.Wait())
}

func TestSubmitBadBody(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})

	for _, body := range []string{"{not json", `{"files": "nope"}`, ""} {
		rec := ts.do("POST", "/BundleFiles", body, nil)
		rtest.Equals(t, http.StatusBadRequest, rec.Code)
	}
}

func TestGetState(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})

	rec := ts.do("GET", "/GetState", "", nil)
	rtest.Equals(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("GET", "/GetState?job_id=DEADBEEFDEADBEEF", "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
	msg := decodeMessage(t, rec)
	rtest.Equals(t, bundler.StateNotAvailable, msg.State)
	rtest.Equals(t, "DEADBEEFDEADBEEF", msg.JobID)

	job := &bundler.Job{
		ID: "J1", UserName: "erin",
		State: bundler.StateComplete, Type: bundler.ArchiveZip,
		NumArchives: 1, NumFiles: 1, Size: 5,
		StartTime: 1_000, EndTime: 2_000,
		Archives: []*bundler.ArchiveJob{
			{
				JobID: "J1", ArchiveID: 0,
				State: bundler.StateComplete, Type: bundler.ArchiveZip,
				NumFiles: 1, Size: 5, ArchiveSize: 3,
				StartTime: 1_000, EndTime: 2_000,
				Entries: []*bundler.FileEntry{
					{JobID: "J1", Path: "mem://data/a", EntryPath: "a", Size: 5, State: bundler.StateComplete},
				},
			},
		},
	}
	rtest.OK(t, ts.store.PersistJob(context.TODO(), job))

	rec = ts.do("GET", "/GetState?job_id=J1", "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
	msg = decodeMessage(t, rec)
	rtest.Equals(t, bundler.StateComplete, msg.State)
	rtest.Equals(t, "erin", msg.UserName)
	rtest.Equals(t, int64(1), msg.ThreadsComplete)
	rtest.Equals(t, int64(5), msg.SizeComplete)
	rtest.Equals(t, int64(1_000), msg.ElapsedTime)
	rtest.Equals(t, 1, len(msg.Archives))
	rtest.Equals(t, 0, len(msg.Archives[0].Entries))
}

func TestIsAlive(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})

	hostname, err := os.Hostname()
	rtest.OK(t, err)
	want := fmt.Sprintf("Application [ bundlerd ] on host [ %v ] and called by user [ %v ] is alive!",
		hostname, "carol")

	rec := ts.do("GET", "/isAlive", "", map[string]string{"SM_USER": "carol"})
	rtest.Equals(t, http.StatusOK, rec.Code)
	rtest.Equals(t, want, rec.Body.String())

	rec = ts.do("HEAD", "/isAlive", "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})

	rec := ts.do("GET", "/DataSourceTest", "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
	rtest.Equals(t, "", rec.Body.String())

	for _, id := range []string{"B2", "A1"} {
		rtest.OK(t, ts.store.PersistJob(context.TODO(), &bundler.Job{
			ID: id, State: bundler.StateComplete, Archives: []*bundler.ArchiveJob{},
		}))
	}

	rec = ts.do("GET", "/DataSourceTest", "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
	rtest.Equals(t, "A1\nB2", rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, httpd.Options{})

	rec := ts.do("GET", "/metrics", "", nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	rtest.Assert(t, strings.Contains(body, "bundler_jobs_submitted_total"),
		"submission counter missing from scrape")
	rtest.Assert(t, strings.Contains(body, "bundler_workers_active"),
		"worker gauge missing from scrape")
}

func TestRequestArchive(t *testing.T) {
	dir := t.TempDir()
	ts := newTestServer(t, httpd.Options{RequestDirectory: dir})

	body := `{"files": ["mem://data/void.txt"], "user_name": "dana"}`
	rec := ts.do("POST", "/BundleFilesJSON", body, nil)
	rtest.Equals(t, http.StatusOK, rec.Code)
	msg := decodeMessage(t, rec)

	buf, err := os.ReadFile(filepath.Join(dir, msg.JobID+".json"))
	rtest.OK(t, err)
	rtest.Equals(t, body, string(buf))

	rtest.OK(t, ts.group.Wait())
}
