package httpd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/jobs"
	"github.com/geopack/bundler/internal/repo"
)

// userHeaders are scanned in order for the caller identity. TLS
// terminators and SiteMinder-style proxies each set a different one.
var userHeaders = []string{
	"X-SSL-Client-CN",
	"SSL_CLIENT_S_DN_CN",
	"SM_USER",
	"SM_USER_CN",
}

func userName(h http.Header) string {
	for _, key := range userHeaders {
		if v := strings.TrimSpace(h.Get(key)); v != "" {
			return v
		}
	}
	return bundler.DefaultUserName
}

func host() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// submit serves the three submission routes. They differ only in the
// content type clients send; the decoder accepts both the flat string
// list and the object form of the file entries.
func (s *Server) submit(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read request body"})
		return
	}

	req, err := bundler.DecodeBundleRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.UserName) == "" {
		req.UserName = userName(c.Request.Header)
	}

	jobID, err := bundler.NewJobID()
	if err != nil {
		s.archiveRequest("", body)
		log.WithError(err).Error("cannot generate a job id")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot generate a job id"})
		return
	}

	s.archiveRequest(jobID, body)

	// The job must outlive this request, so it runs on the daemon's
	// group under the daemon's context.
	s.group.Go(func() error {
		if _, err := s.dispatcher.Submit(s.ctx, jobID, req); err != nil {
			log.WithField("job", jobID).WithError(err).Error("job submission failed")
		}
		return nil
	})

	c.JSON(http.StatusOK, &bundler.TrackerMessage{
		JobID:    jobID,
		UserName: req.UserName,
		State:    bundler.StateNotStarted,
		Archives: []*bundler.ArchiveJob{},
	})
}

// state reports a point-in-time snapshot of one job. Unknown ids are a
// valid answer, not an error: pollers may ask before the submit has
// been persisted.
func (s *Server) state(c *gin.Context) {
	jobID := strings.TrimSpace(c.Query("job_id"))
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id parameter is required"})
		return
	}

	job, err := s.store.GetJob(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusOK, bundler.NotAvailableMessage(jobID))
	case err != nil:
		log.WithField("job", jobID).WithError(err).Error("state lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state lookup failed"})
	default:
		c.JSON(http.StatusOK, jobs.Snapshot(job, time.Now()))
	}
}

func (s *Server) alive(c *gin.Context) {
	c.String(http.StatusOK,
		"Application [ bundlerd ] on host [ %v ] and called by user [ %v ] is alive!",
		host(), userName(c.Request.Header))
}

// listJobs answers the connectivity probe with the known job ids, one
// per line.
func (s *Server) listJobs(c *gin.Context) {
	ids, err := s.store.ListJobIDs(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("job listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job listing failed"})
		return
	}
	c.String(http.StatusOK, strings.Join(ids, "\n"))
}

// archiveRequest keeps a copy of the raw submission body for later
// inspection. Best effort: failures are logged, never surfaced.
func (s *Server) archiveRequest(jobID string, body []byte) {
	if s.requestDir == "" {
		return
	}
	if jobID == "" {
		jobID = fmt.Sprintf("UNAVAILABLE_%d", time.Now().UnixMilli())
	}

	path := filepath.Join(s.requestDir, jobID+".json")
	if err := os.WriteFile(path, body, 0644); err != nil {
		log.WithField("path", path).WithError(err).Warn("cannot archive the bundle request")
	}
}
