// Package mem implements the repo.Store contract on in-process maps.
// It is the default store and the one the tests run against.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/repo"
)

// Store keeps the entity trees in a map guarded by a mutex. All values
// handed out are deep copies, so callers can never alias the stored
// tree.
type Store struct {
	m    sync.Mutex
	jobs map[string]*bundler.Job
}

// make sure that *Store implements repo.Store
var _ repo.Store = &Store{}

// New returns an empty store.
func New() *Store {
	return &Store{jobs: make(map[string]*bundler.Job)}
}

func cloneJob(j *bundler.Job) *bundler.Job {
	c := *j
	c.Archives = make([]*bundler.ArchiveJob, 0, len(j.Archives))
	for _, a := range j.Archives {
		c.Archives = append(c.Archives, cloneArchive(a))
	}
	return &c
}

func cloneArchive(a *bundler.ArchiveJob) *bundler.ArchiveJob {
	c := *a
	c.Entries = make([]*bundler.FileEntry, 0, len(a.Entries))
	for _, e := range a.Entries {
		ce := *e
		c.Entries = append(c.Entries, &ce)
	}
	return &c
}

func (s *Store) PersistJob(_ context.Context, job *bundler.Job) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*bundler.Job, error) {
	s.m.Lock()
	defer s.m.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.Wrapf(repo.ErrNotFound, "job %v", jobID)
	}
	return cloneJob(j), nil
}

func (s *Store) GetArchive(_ context.Context, jobID string, archiveID int64) (*bundler.ArchiveJob, error) {
	s.m.Lock()
	defer s.m.Unlock()

	a, err := s.archive(jobID, archiveID)
	if err != nil {
		return nil, err
	}
	return cloneArchive(a), nil
}

func (s *Store) GetFileEntry(_ context.Context, jobID string, archiveID int64, path string) (*bundler.FileEntry, error) {
	s.m.Lock()
	defer s.m.Unlock()

	a, err := s.archive(jobID, archiveID)
	if err != nil {
		return nil, err
	}

	e := a.Entry(path)
	if e == nil {
		return nil, errors.Wrapf(repo.ErrNotFound, "entry %v in job %v archive %d", path, jobID, archiveID)
	}
	c := *e
	return &c, nil
}

func (s *Store) UpdateJob(_ context.Context, job *bundler.Job) error {
	s.m.Lock()
	defer s.m.Unlock()

	existing, ok := s.jobs[job.ID]
	if !ok {
		return errors.Wrapf(repo.ErrNotFound, "job %v", job.ID)
	}

	c := *job
	c.Archives = existing.Archives
	s.jobs[job.ID] = &c
	return nil
}

func (s *Store) UpdateArchive(_ context.Context, archive *bundler.ArchiveJob) error {
	s.m.Lock()
	defer s.m.Unlock()

	j, ok := s.jobs[archive.JobID]
	if !ok {
		return errors.Wrapf(repo.ErrNotFound, "job %v", archive.JobID)
	}

	for i, a := range j.Archives {
		if a.ArchiveID == archive.ArchiveID {
			c := *archive
			c.Entries = a.Entries
			j.Archives[i] = &c
			return nil
		}
	}
	return errors.Wrapf(repo.ErrNotFound, "archive %d in job %v", archive.ArchiveID, archive.JobID)
}

func (s *Store) UpdateFileEntryState(_ context.Context, jobID string, archiveID int64, path string, state bundler.JobState) error {
	s.m.Lock()
	defer s.m.Unlock()

	a, err := s.archive(jobID, archiveID)
	if err != nil {
		return err
	}

	e := a.Entry(path)
	if e == nil {
		return errors.Wrapf(repo.ErrNotFound, "entry %v in job %v archive %d", path, jobID, archiveID)
	}
	e.State = state
	return nil
}

func (s *Store) ListJobIDs(_ context.Context) ([]string, error) {
	s.m.Lock()
	defer s.m.Unlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close() error {
	return nil
}

// archive returns the stored (not copied) archive. Callers hold s.m.
func (s *Store) archive(jobID string, archiveID int64) (*bundler.ArchiveJob, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.Wrapf(repo.ErrNotFound, "job %v", jobID)
	}

	a := j.Archive(archiveID)
	if a == nil {
		return nil, errors.Wrapf(repo.ErrNotFound, "archive %d in job %v", archiveID, jobID)
	}
	return a, nil
}
