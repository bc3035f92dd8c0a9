package jobs

import (
	"context"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/geopack/bundler/internal/binpack"
	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/entrypath"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/estimate"
	"github.com/geopack/bundler/internal/metrics"
	"github.com/geopack/bundler/internal/repo"
	"github.com/geopack/bundler/internal/vfs"
)

// Options carries the submission policy knobs, all read from the
// configuration file at startup. Sizes are in megabytes.
type Options struct {
	StagingDirectory     string
	StagingDirectoryBase string
	BaseURL              string
	EntryPathExclusions  []string

	MinArchiveSize     int64
	MaxArchiveSize     int64
	DefaultArchiveSize int64

	CompressionPercentage int64
	HashType              bundler.HashType
}

// Dispatcher turns bundle requests into persisted jobs and running
// workers. One Dispatcher serves the whole process; every Submit call
// is independent.
type Dispatcher struct {
	store repo.Store
	fsys  vfs.FS
	group *errgroup.Group

	normalizer *entrypath.Normalizer
	estimator  *estimate.Estimator
	namer      *Namer
	urls       *URLRewriter

	hashType bundler.HashType
	minMB    int64
	maxMB    int64
	defMB    int64
}

// NewDispatcher returns a Dispatcher. Workers are spawned on group, so
// the owner can wait for in-flight archives on shutdown.
func NewDispatcher(opts Options, store repo.Store, fsys vfs.FS, group *errgroup.Group) *Dispatcher {
	return &Dispatcher{
		store:      store,
		fsys:       fsys,
		group:      group,
		normalizer: entrypath.New(opts.EntryPathExclusions),
		estimator:  estimate.New(opts.CompressionPercentage),
		namer:      NewNamer(opts.StagingDirectory, opts.HashType),
		urls:       NewURLRewriter(opts.StagingDirectoryBase, opts.BaseURL),
		hashType:   opts.HashType,
		minMB:      opts.MinArchiveSize,
		maxMB:      opts.MaxArchiveSize,
		defMB:      opts.DefaultArchiveSize,
	}
}

// Submit runs the intake path for one request: validate, expand the
// file list, plan the archives, persist the job and start one worker
// per archive. A request that fails validation is persisted as
// INVALID_REQUEST and starts no workers. The returned job is the
// persisted entity; an error means the store rejected the write.
func (d *Dispatcher) Submit(ctx context.Context, jobID string, req *bundler.BundleRequest) (*bundler.Job, error) {
	metrics.JobsSubmitted.Inc()

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		userName = bundler.DefaultUserName
	}

	logger := log.WithFields(log.Fields{"job": jobID, "user": userName})

	typ := bundler.ArchiveZip
	if s := strings.TrimSpace(req.Type); s != "" {
		var err error
		typ, err = bundler.ParseArchiveType(s)
		if err != nil {
			logger.WithError(err).Error("rejecting request")
			return d.persistInvalid(ctx, jobID, userName, "")
		}
	}

	if len(req.Files) == 0 {
		logger.Error("rejecting request without files")
		return d.persistInvalid(ctx, jobID, userName, typ)
	}

	elements := d.expand(ctx, req)
	if len(elements) == 0 {
		logger.Error("no usable files remain after validation, rejecting request")
		return d.persistInvalid(ctx, jobID, userName, typ)
	}

	groups := binpack.Pack(elements, d.targetBytes(req.MaxSize), typ, d.estimator)

	job := d.buildJob(jobID, userName, typ, Template(req.OutputFilename), groups)
	if err := d.store.PersistJob(ctx, job); err != nil {
		return nil, errors.Wrapf(err, "persist job %v", jobID)
	}

	logger.WithFields(log.Fields{
		"type":     typ,
		"archives": job.NumArchives,
		"files":    job.NumFiles,
		"size":     job.Size,
	}).Info("job accepted")

	d.start(ctx, job)
	return job, nil
}

// persistInvalid records a rejected submission, so that later state
// queries see INVALID_REQUEST rather than NOT_AVAILABLE.
func (d *Dispatcher) persistInvalid(ctx context.Context, jobID, userName string, typ bundler.ArchiveType) (*bundler.Job, error) {
	metrics.JobsInvalid.Inc()

	job := &bundler.Job{
		ID:       jobID,
		UserName: userName,
		State:    bundler.StateInvalidRequest,
		Type:     typ,
		Archives: []*bundler.ArchiveJob{},
	}
	if err := d.store.PersistJob(ctx, job); err != nil {
		return nil, errors.Wrapf(err, "persist job %v", jobID)
	}
	return job, nil
}

// targetBytes converts the requested archive size into the bin-packer
// target, applying the configured default and clamp bounds.
func (d *Dispatcher) targetBytes(requestedMB int64) int64 {
	mb := requestedMB
	switch {
	case mb <= 0:
		mb = d.defMB
	case mb < d.minMB:
		mb = d.minMB
	case mb > d.maxMB:
		mb = d.maxMB
	}
	return mb * bundler.BytesPerMegabyte
}

// expand turns the requested files into archive elements: plain files
// are taken as-is, directories are walked, and sources that cannot be
// read are logged and skipped.
func (d *Dispatcher) expand(ctx context.Context, req *bundler.BundleRequest) []bundler.ArchiveElement {
	var elements []bundler.ArchiveElement

	for _, f := range req.Files {
		source := strings.TrimSpace(f.Path)
		if source == "" {
			continue
		}

		loc := vfs.Parse(source)
		info, err := d.fsys.Stat(ctx, loc)
		if err != nil {
			log.WithField("path", source).WithError(err).
				Warn("skipping unreadable source")
			continue
		}

		if !info.Dir {
			elements = append(elements, d.element(loc, f.ArchivePath, info.Size))
			continue
		}

		err = d.fsys.Walk(ctx, loc, func(file vfs.Location, size int64) error {
			elements = append(elements, bundler.ArchiveElement{
				Path:      file.String(),
				EntryPath: d.normalizer.NormalizeWithBase(file.String(), loc.Path, f.ArchivePath),
				Size:      size,
			})
			return nil
		})
		if err != nil {
			log.WithField("path", source).WithError(err).
				Warn("directory walk failed, keeping the files already seen")
		}
	}
	return elements
}

// element builds the archive element for a single requested file. An
// archive_path on the request replaces the whole directory part of the
// entry path.
func (d *Dispatcher) element(loc vfs.Location, archivePath string, size int64) bundler.ArchiveElement {
	source := loc.String()

	var entry string
	if archivePath != "" {
		entry = d.normalizer.NormalizeWithBase(source, parentDir(loc), archivePath)
	} else {
		entry = d.normalizer.Normalize(source)
	}
	return bundler.ArchiveElement{Path: source, EntryPath: entry, Size: size}
}

// parentDir returns the directory part of a location's path in slash
// form.
func parentDir(loc vfs.Location) string {
	return path.Dir(strings.ReplaceAll(loc.Path, "\\", "/"))
}

// buildJob assembles the entity tree for a planned job: one archive per
// planned group, one file entry per element, in planning order.
func (d *Dispatcher) buildJob(jobID, userName string, typ bundler.ArchiveType, template string, groups [][]bundler.ArchiveElement) *bundler.Job {
	job := &bundler.Job{
		ID:          jobID,
		UserName:    userName,
		State:       bundler.StateNotStarted,
		Type:        typ,
		NumArchives: int64(len(groups)),
		Archives:    make([]*bundler.ArchiveJob, 0, len(groups)),
	}

	for i, group := range groups {
		archiveID := int64(i)
		artifact := d.namer.Artifact(jobID, archiveID, template, typ)
		digest := d.namer.HashSibling(artifact)

		arch := &bundler.ArchiveJob{
			JobID:      jobID,
			ArchiveID:  archiveID,
			State:      bundler.StateNotStarted,
			Type:       typ,
			Archive:    artifact.String(),
			ArchiveURL: d.urls.Rewrite(artifact.String()),
			Hash:       digest.String(),
			HashURL:    d.urls.Rewrite(digest.String()),
			NumFiles:   int64(len(group)),
			Entries:    make([]*bundler.FileEntry, 0, len(group)),
		}

		for _, el := range group {
			arch.Size += el.Size
			arch.Entries = append(arch.Entries, &bundler.FileEntry{
				JobID:     jobID,
				ArchiveID: archiveID,
				Path:      el.Path,
				EntryPath: el.EntryPath,
				Size:      el.Size,
				State:     bundler.StateNotStarted,
			})
		}

		job.NumFiles += arch.NumFiles
		job.Size += arch.Size
		job.Archives = append(job.Archives, arch)
	}
	return job
}

// start makes the job's output directory, flips the job to IN_PROGRESS
// and spawns one worker per archive.
func (d *Dispatcher) start(ctx context.Context, job *bundler.Job) {
	if err := d.fsys.MkdirAll(ctx, d.namer.JobDir(job.ID)); err != nil {
		log.WithField("job", job.ID).WithError(err).
			Warn("cannot create the job output directory")
	}

	// The job row must read IN_PROGRESS before the first worker can
	// finish; a job-level write after the spawn could clobber the
	// tracker's close-out.
	job.State = bundler.StateInProgress
	job.StartTime = time.Now().UnixMilli()
	if err := d.store.UpdateJob(ctx, job); err != nil {
		log.WithField("job", job.ID).WithError(err).
			Error("failed to mark job in progress")
	}

	tracker := NewTracker(d.store, job.ID)
	for _, arch := range job.Archives {
		worker := NewWorker(d.store, d.fsys, tracker, d.hashType, job.ID, arch.ArchiveID)
		d.group.Go(func() error {
			worker.Run(ctx)
			return nil
		})
	}
}
