// Package httpd exposes the bundling service over HTTP: three
// submission routes, the job state reader, liveness and diagnostics
// probes, and the prometheus scrape endpoint.
package httpd

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/geopack/bundler/internal/jobs"
	"github.com/geopack/bundler/internal/repo"
)

// Options carries the HTTP-layer settings.
type Options struct {
	// Debug enables gin's debug mode and verbose route logging.
	Debug bool

	// RequestDirectory, when set, receives a copy of every raw
	// submission body for later inspection.
	RequestDirectory string
}

// Server routes the service API. Submissions are dispatched
// asynchronously: the handler answers with a NOT_STARTED tracker and
// the job runs on the daemon's worker group.
type Server struct {
	// ctx is the daemon's worker context. Jobs accepted here must
	// outlive the request that submitted them, so handlers never pass
	// the request context to the dispatcher.
	ctx context.Context

	store      repo.Store
	dispatcher *jobs.Dispatcher
	group      *errgroup.Group
	requestDir string

	engine *gin.Engine
}

// New returns a Server dispatching accepted jobs on group under ctx.
func New(ctx context.Context, opts Options, store repo.Store, dispatcher *jobs.Dispatcher, group *errgroup.Group) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		ctx:        ctx,
		store:      store,
		dispatcher: dispatcher,
		group:      group,
		requestDir: opts.RequestDirectory,
	}

	if s.requestDir != "" {
		if err := os.MkdirAll(s.requestDir, 0755); err != nil {
			log.WithField("dir", s.requestDir).WithError(err).
				Warn("cannot create the request archive directory")
		}
	}

	e := gin.New()
	e.Use(recovery(), accessLog(), measure())

	e.POST("/BundleFiles", s.submit)
	e.POST("/BundleFilesJSON", s.submit)
	e.POST("/BundleFilesText", s.submit)
	e.GET("/GetState", s.state)
	e.GET("/isAlive", s.alive)
	e.HEAD("/isAlive", s.alive)
	e.GET("/DataSourceTest", s.listJobs)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = e
	return s
}

// Handler returns the routed handler, ready for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}
