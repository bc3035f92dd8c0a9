package bundler

// TrackerMessage is the client-facing snapshot of a job. It is rebuilt
// from the persisted entity tree on every request; the counters here are
// derived, never stored.
type TrackerMessage struct {
	JobID           string        `json:"job_id"`
	UserName        string        `json:"user_name"`
	State           JobState      `json:"state"`
	Threads         int64         `json:"threads"`
	ThreadsComplete int64         `json:"threads_complete"`
	HashesComplete  int64         `json:"hashes_complete"`
	NumFiles        int64         `json:"num_files"`
	FilesComplete   int64         `json:"files_complete"`
	Size            int64         `json:"size"`
	SizeComplete    int64         `json:"size_complete"`
	ElapsedTime     int64         `json:"elapsed_time"`
	Archives        []*ArchiveJob `json:"archives"`
}

// NotAvailableMessage is the snapshot returned for a job id the tracker
// has no record of.
func NotAvailableMessage(jobID string) *TrackerMessage {
	return &TrackerMessage{
		JobID:    jobID,
		State:    StateNotAvailable,
		Archives: []*ArchiveJob{},
	}
}
