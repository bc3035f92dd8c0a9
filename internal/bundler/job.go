package bundler

// Job is the root of the tracked entity tree. A job owns one archive per
// planned output artifact; progress counters are aggregates recomputed
// from the archives below it.
type Job struct {
	ID               string        `json:"job_id"`
	UserName         string        `json:"user_name"`
	State            JobState      `json:"state"`
	Type             ArchiveType   `json:"archive_type"`
	NumArchives      int64         `json:"num_archives"`
	ArchivesComplete int64         `json:"archives_complete"`
	NumFiles         int64         `json:"num_files"`
	FilesComplete    int64         `json:"files_complete"`
	Size             int64         `json:"size"`
	SizeComplete     int64         `json:"size_complete"`
	StartTime        int64         `json:"start_time"`
	EndTime          int64         `json:"end_time"`
	Archives         []*ArchiveJob `json:"archives"`
}

// Archive returns the archive with the given id, or nil.
func (j *Job) Archive(archiveID int64) *ArchiveJob {
	for _, a := range j.Archives {
		if a.ArchiveID == archiveID {
			return a
		}
	}
	return nil
}

// ArchiveJob is the unit of work handed to a single worker: the files it
// must bundle, the artifact it must produce, and its own progress record.
// The archive type is carried on the row so a worker needs nothing but
// its own record to run.
type ArchiveJob struct {
	JobID     string      `json:"job_id"`
	ArchiveID int64       `json:"archive_id"`
	State     JobState    `json:"state"`
	Type      ArchiveType `json:"archive_type"`

	// Archive is the output artifact location; Hash is the sibling
	// digest file. The URL forms are the client-facing rewrites.
	Archive    string `json:"archive"`
	ArchiveURL string `json:"archive_url"`
	Hash       string `json:"hash"`
	HashURL    string `json:"hash_url"`

	NumFiles      int64 `json:"num_files"`
	FilesComplete int64 `json:"files_complete"`

	// Size is the uncompressed sum of the entry sizes; ArchiveSize is
	// the size of the finished artifact, recorded on completion.
	Size         int64 `json:"size"`
	SizeComplete int64 `json:"size_complete"`
	ArchiveSize  int64 `json:"archive_size,omitempty"`

	HostName  string `json:"host_name"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`

	Entries []*FileEntry `json:"entries,omitempty"`
}

// Entry returns the file entry for the given source path, or nil.
func (a *ArchiveJob) Entry(path string) *FileEntry {
	for _, e := range a.Entries {
		if e.Path == path {
			return e
		}
	}
	return nil
}

// FileEntry records a single source file inside an archive, keyed by its
// source path within the owning archive.
type FileEntry struct {
	JobID     string   `json:"job_id"`
	ArchiveID int64    `json:"archive_id"`
	Path      string   `json:"path"`
	EntryPath string   `json:"entry_path"`
	Size      int64    `json:"size"`
	State     JobState `json:"state"`
}

// ArchiveElement is the transient planning form of a file before it is
// assigned to an archive: the resolved source, the path it will carry
// inside the archive, and its measured size.
type ArchiveElement struct {
	Path      string
	EntryPath string
	Size      int64
}
