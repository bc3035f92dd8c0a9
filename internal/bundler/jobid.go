package bundler

import (
	"encoding/hex"
	"strings"

	"github.com/geopack/bundler/internal/errors"
	"github.com/hashicorp/go-uuid"
)

// NewJobID returns a fresh job identifier: sixteen uppercase hex digits
// from eight random bytes.
func NewJobID() (string, error) {
	buf, err := uuid.GenerateRandomBytes(8)
	if err != nil {
		return "", errors.Wrap(err, "generate job id")
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
