package bundler

import (
	"encoding/json"

	"github.com/geopack/bundler/internal/errors"
)

// FileRequest names one requested source file. The JSON form is either a
// bare string (the path) or an object carrying an optional archive_path
// prefix for the entry inside the archive.
type FileRequest struct {
	Path        string `json:"path"`
	ArchivePath string `json:"archive_path,omitempty"`
}

// UnmarshalJSON accepts both the string and the object form.
func (f *FileRequest) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.Path)
	}

	type plain FileRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FileRequest(p)
	return nil
}

// BundleRequest is the submitted job description. Type and MaxSize are
// kept in their raw form so that out-of-range values surface as an
// INVALID_REQUEST job instead of a decode failure.
type BundleRequest struct {
	Files          []FileRequest `json:"files"`
	Type           string        `json:"type,omitempty"`
	MaxSize        int64         `json:"max_size,omitempty"`
	OutputFilename string        `json:"output_filename,omitempty"`
	UserName       string        `json:"user_name,omitempty"`
}

// DecodeBundleRequest parses the JSON body of a submission.
func DecodeBundleRequest(data []byte) (*BundleRequest, error) {
	var req BundleRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, "decode bundle request")
	}
	return &req, nil
}
