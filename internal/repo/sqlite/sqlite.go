// Package sqlite implements the repo.Store contract on a SQLite file,
// one table per entity level.
package sqlite

import (
	"context"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/repo"
)

type jobRow struct {
	JobID            string `gorm:"primaryKey"`
	UserName         string
	State            string
	ArchiveType      string
	NumArchives      int64
	ArchivesComplete int64
	NumFiles         int64
	FilesComplete    int64
	Size             int64
	SizeComplete     int64
	StartTime        int64
	EndTime          int64
}

func (jobRow) TableName() string { return "jobs" }

type archiveRow struct {
	JobID         string `gorm:"primaryKey"`
	ArchiveID     int64  `gorm:"primaryKey;autoIncrement:false"`
	State         string
	ArchiveType   string
	Archive       string
	ArchiveURL    string
	Hash          string
	HashURL       string
	NumFiles      int64
	FilesComplete int64
	Size          int64
	SizeComplete  int64
	ArchiveSize   int64
	HostName      string
	StartTime     int64
	EndTime       int64
}

func (archiveRow) TableName() string { return "archives" }

// entryRow carries a sequence number so that the bundling order of the
// entries survives the round trip through the database.
type entryRow struct {
	JobID     string `gorm:"primaryKey"`
	ArchiveID int64  `gorm:"primaryKey;autoIncrement:false"`
	Path      string `gorm:"primaryKey"`
	Seq       int64
	EntryPath string
	Size      int64
	State     string
}

func (entryRow) TableName() string { return "file_entries" }

// Store wraps a gorm handle on the SQLite database at the configured
// path.
type Store struct {
	db *gorm.DB
}

// make sure that *Store implements repo.Store
var _ repo.Store = &Store{}

// Open opens or creates the database file and migrates the schema.
func Open(path string) (*Store, error) {
	debug.Log("opening sqlite store at %v", path)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Open")
	}

	if err := db.AutoMigrate(&jobRow{}, &archiveRow{}, &entryRow{}); err != nil {
		return nil, errors.Wrap(err, "AutoMigrate")
	}
	return &Store{db: db}, nil
}

func jobToRow(j *bundler.Job) *jobRow {
	return &jobRow{
		JobID:            j.ID,
		UserName:         j.UserName,
		State:            string(j.State),
		ArchiveType:      string(j.Type),
		NumArchives:      j.NumArchives,
		ArchivesComplete: j.ArchivesComplete,
		NumFiles:         j.NumFiles,
		FilesComplete:    j.FilesComplete,
		Size:             j.Size,
		SizeComplete:     j.SizeComplete,
		StartTime:        j.StartTime,
		EndTime:          j.EndTime,
	}
}

func rowToJob(r *jobRow) *bundler.Job {
	return &bundler.Job{
		ID:               r.JobID,
		UserName:         r.UserName,
		State:            bundler.JobState(r.State),
		Type:             bundler.ArchiveType(r.ArchiveType),
		NumArchives:      r.NumArchives,
		ArchivesComplete: r.ArchivesComplete,
		NumFiles:         r.NumFiles,
		FilesComplete:    r.FilesComplete,
		Size:             r.Size,
		SizeComplete:     r.SizeComplete,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Archives:         []*bundler.ArchiveJob{},
	}
}

func archiveToRow(a *bundler.ArchiveJob) *archiveRow {
	return &archiveRow{
		JobID:         a.JobID,
		ArchiveID:     a.ArchiveID,
		State:         string(a.State),
		ArchiveType:   string(a.Type),
		Archive:       a.Archive,
		ArchiveURL:    a.ArchiveURL,
		Hash:          a.Hash,
		HashURL:       a.HashURL,
		NumFiles:      a.NumFiles,
		FilesComplete: a.FilesComplete,
		Size:          a.Size,
		SizeComplete:  a.SizeComplete,
		ArchiveSize:   a.ArchiveSize,
		HostName:      a.HostName,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
	}
}

func rowToArchive(r *archiveRow) *bundler.ArchiveJob {
	return &bundler.ArchiveJob{
		JobID:         r.JobID,
		ArchiveID:     r.ArchiveID,
		State:         bundler.JobState(r.State),
		Type:          bundler.ArchiveType(r.ArchiveType),
		Archive:       r.Archive,
		ArchiveURL:    r.ArchiveURL,
		Hash:          r.Hash,
		HashURL:       r.HashURL,
		NumFiles:      r.NumFiles,
		FilesComplete: r.FilesComplete,
		Size:          r.Size,
		SizeComplete:  r.SizeComplete,
		ArchiveSize:   r.ArchiveSize,
		HostName:      r.HostName,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Entries:       []*bundler.FileEntry{},
	}
}

func rowToEntry(r *entryRow) *bundler.FileEntry {
	return &bundler.FileEntry{
		JobID:     r.JobID,
		ArchiveID: r.ArchiveID,
		Path:      r.Path,
		EntryPath: r.EntryPath,
		Size:      r.Size,
		State:     bundler.JobState(r.State),
	}
}

func (s *Store) PersistJob(ctx context.Context, job *bundler.Job) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(jobToRow(job)).Error; err != nil {
			return errors.Wrap(err, "Save job")
		}

		for _, a := range job.Archives {
			if err := tx.Save(archiveToRow(a)).Error; err != nil {
				return errors.Wrap(err, "Save archive")
			}

			for seq, e := range a.Entries {
				row := &entryRow{
					JobID:     e.JobID,
					ArchiveID: e.ArchiveID,
					Path:      e.Path,
					Seq:       int64(seq),
					EntryPath: e.EntryPath,
					Size:      e.Size,
					State:     string(e.State),
				}
				if err := tx.Save(row).Error; err != nil {
					return errors.Wrap(err, "Save entry")
				}
			}
		}
		return nil
	})
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*bundler.Job, error) {
	var jr jobRow
	err := s.db.WithContext(ctx).First(&jr, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(repo.ErrNotFound, "job %v", jobID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "First")
	}

	var ars []archiveRow
	err = s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("archive_id").Find(&ars).Error
	if err != nil {
		return nil, errors.Wrap(err, "Find archives")
	}

	var ers []entryRow
	err = s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("archive_id, seq").Find(&ers).Error
	if err != nil {
		return nil, errors.Wrap(err, "Find entries")
	}

	job := rowToJob(&jr)
	byID := make(map[int64]*bundler.ArchiveJob, len(ars))
	for i := range ars {
		a := rowToArchive(&ars[i])
		byID[a.ArchiveID] = a
		job.Archives = append(job.Archives, a)
	}
	for i := range ers {
		if a, ok := byID[ers[i].ArchiveID]; ok {
			a.Entries = append(a.Entries, rowToEntry(&ers[i]))
		}
	}
	return job, nil
}

func (s *Store) GetArchive(ctx context.Context, jobID string, archiveID int64) (*bundler.ArchiveJob, error) {
	var ar archiveRow
	err := s.db.WithContext(ctx).First(&ar, "job_id = ? AND archive_id = ?", jobID, archiveID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(repo.ErrNotFound, "archive %d in job %v", archiveID, jobID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "First")
	}

	var ers []entryRow
	err = s.db.WithContext(ctx).
		Where("job_id = ? AND archive_id = ?", jobID, archiveID).
		Order("seq").Find(&ers).Error
	if err != nil {
		return nil, errors.Wrap(err, "Find entries")
	}

	a := rowToArchive(&ar)
	for i := range ers {
		a.Entries = append(a.Entries, rowToEntry(&ers[i]))
	}
	return a, nil
}

func (s *Store) GetFileEntry(ctx context.Context, jobID string, archiveID int64, path string) (*bundler.FileEntry, error) {
	var er entryRow
	err := s.db.WithContext(ctx).
		First(&er, "job_id = ? AND archive_id = ? AND path = ?", jobID, archiveID, path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(repo.ErrNotFound, "entry %v in job %v archive %d", path, jobID, archiveID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "First")
	}
	return rowToEntry(&er), nil
}

func (s *Store) UpdateJob(ctx context.Context, job *bundler.Job) error {
	res := s.db.WithContext(ctx).Model(&jobRow{}).
		Where("job_id = ?", job.ID).
		Select("*").Omit("job_id").
		Updates(jobToRow(job))
	if res.Error != nil {
		return errors.Wrap(res.Error, "Updates")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(repo.ErrNotFound, "job %v", job.ID)
	}
	return nil
}

func (s *Store) UpdateArchive(ctx context.Context, archive *bundler.ArchiveJob) error {
	res := s.db.WithContext(ctx).Model(&archiveRow{}).
		Where("job_id = ? AND archive_id = ?", archive.JobID, archive.ArchiveID).
		Select("*").Omit("job_id", "archive_id").
		Updates(archiveToRow(archive))
	if res.Error != nil {
		return errors.Wrap(res.Error, "Updates")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(repo.ErrNotFound, "archive %d in job %v", archive.ArchiveID, archive.JobID)
	}
	return nil
}

func (s *Store) UpdateFileEntryState(ctx context.Context, jobID string, archiveID int64, path string, state bundler.JobState) error {
	res := s.db.WithContext(ctx).Model(&entryRow{}).
		Where("job_id = ? AND archive_id = ? AND path = ?", jobID, archiveID, path).
		Update("state", string(state))
	if res.Error != nil {
		return errors.Wrap(res.Error, "Update")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(repo.ErrNotFound, "entry %v in job %v archive %d", path, jobID, archiveID)
	}
	return nil
}

func (s *Store) ListJobIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&jobRow{}).Order("job_id").Pluck("job_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "Pluck")
	}
	return ids, nil
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "DB")
	}
	return errors.Wrap(db.Close(), "Close")
}
