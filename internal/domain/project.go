package domain

import (
	"encoding/hex"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// Project is a filesystem root an agent CLI operates in
type Project struct {
	CreatedAt time.Time
	ID        string
	Name      string
	Path      string
}

// ProjectIDForPath derives a stable project id from the cleaned absolute path.
// Two distinct paths never share an id, unlike the log directory encoding.
func ProjectIDForPath(path string) string {
	sum := blake3.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:16])
}

// DefaultProjectName returns the last path element, used when no name is given
func DefaultProjectName(path string) string {
	name := filepath.Base(filepath.Clean(path))
	if name == "." || name == string(filepath.Separator) {
		return path
	}
	return name
}
