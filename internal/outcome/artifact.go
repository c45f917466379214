package outcome

import (
	"errors"
	"io/fs"
	"os"
)

// Artifact is the file a tool is expected to leave behind.
type Artifact interface {
	Path() string
	// Read returns the artifact content. exists is false, with a nil error,
	// when the artifact was never produced.
	Read() (content string, exists bool, err error)
}

// FileArtifact is an artifact on the local filesystem.
type FileArtifact string

func (a FileArtifact) Path() string {
	return string(a)
}

func (a FileArtifact) Read() (string, bool, error) {
	data, err := os.ReadFile(string(a))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", true, err
	}
	return string(data), true, nil
}
