package main

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/geopack/bundler/internal/config"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/httpd"
	"github.com/geopack/bundler/internal/jobs"
	"github.com/geopack/bundler/internal/repo"
	repomem "github.com/geopack/bundler/internal/repo/mem"
	"github.com/geopack/bundler/internal/repo/sqlite"
	"github.com/geopack/bundler/internal/vfs"
	"github.com/geopack/bundler/internal/vfs/local"
	"github.com/geopack/bundler/internal/vfs/retry"
	"github.com/geopack/bundler/internal/vfs/s3"
)

func runServe(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("closing the job store")
		}
	}()

	fsys, err := openFS(cfg)
	if err != nil {
		return err
	}

	// Jobs interrupted by the previous run must not stay IN_PROGRESS
	// forever; close them out before accepting new work.
	if err := jobs.Recover(ctx, store); err != nil {
		return errors.Wrap(err, "recover interrupted jobs")
	}

	// Accepted jobs run on their own context so that an HTTP shutdown
	// does not abort archives that are still being written.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	group, workerCtx := errgroup.WithContext(workerCtx)

	dispatcher := jobs.NewDispatcher(dispatcherOptions(cfg), store, fsys, group)
	api := httpd.New(workerCtx, httpd.Options{
		Debug:            cfg.ServerDebug,
		RequestDirectory: cfg.BundleRequestDirectory,
	}, store, dispatcher, group)

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: api.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.ServerAddress).Info("bundlerd listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}

	// Running jobs get the same grace period before their context is
	// cut. The workers persist an ERROR row when cancelled, and the
	// recovery sweep of the next run closes anything that was lost.
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("shutdown grace period exceeded, cancelling running jobs")
		stopWorkers()
		return <-done
	}
}

func openStore(cfg *config.Config) (repo.Store, error) {
	if cfg.DatabaseType == "sqlite" {
		log.WithField("path", cfg.DatabasePath).Info("opening the sqlite job store")
		return sqlite.Open(cfg.DatabasePath)
	}
	log.Info("using the in-memory job store")
	return repomem.New(), nil
}

// openFS builds the staging filesystem: local paths always work, the s3
// scheme is added when credentials are configured, and every operation
// is retried with exponential backoff.
func openFS(cfg *config.Config) (vfs.FS, error) {
	system := vfs.NewSystem()
	system.Register(local.New())

	if cfg.S3Configured() {
		provider, err := s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			IAMRole:   cfg.IAMRole,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		system.Register(provider)
		log.WithField("endpoint", cfg.S3Endpoint).Info("s3 staging enabled")
	}

	report := func(op string, err error, d time.Duration) {
		log.WithError(err).WithFields(log.Fields{"op": op, "backoff": d}).
			Warn("filesystem operation failed, retrying")
	}
	success := func(op string, retries int) {
		log.WithFields(log.Fields{"op": op, "retries": retries}).
			Info("filesystem operation recovered")
	}
	return retry.New(system, cfg.RetryMaxElapsed, report, success), nil
}

func dispatcherOptions(cfg *config.Config) jobs.Options {
	return jobs.Options{
		StagingDirectory:      cfg.StagingDirectory,
		StagingDirectoryBase:  cfg.StagingDirectoryBase,
		BaseURL:               cfg.BaseURL,
		EntryPathExclusions:   cfg.EntryPathExclusions,
		MinArchiveSize:        cfg.MinArchiveSize,
		MaxArchiveSize:        cfg.MaxArchiveSize,
		DefaultArchiveSize:    cfg.DefaultArchiveSize,
		CompressionPercentage: cfg.CompressionPercentage,
		HashType:              cfg.HashType,
	}
}
