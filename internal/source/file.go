// Package source provides the counter dump readers consumed by
// cpustat.Tracker: the local procfs file, a remote Linux host over SSH, and
// the host's own counters through gopsutil.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStatPath returns the path of the local CPU counter dump. The procfs
// mount point can be moved with HOST_PROC, as when running in a container
// with the host's /proc bind-mounted elsewhere.
func DefaultStatPath() string {
	root := os.Getenv("HOST_PROC")
	if root == "" {
		root = "/proc"
	}
	return filepath.Join(root, "stat")
}

// File reads the counter dump from a file on the local filesystem.
type File struct {
	Path string
}

// NewFile creates a File source. An empty path selects DefaultStatPath.
func NewFile(path string) *File {
	if path == "" {
		path = DefaultStatPath()
	}
	return &File{Path: path}
}

// ReadStat reads the whole file.
func (f *File) ReadStat(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Path, err)
	}
	return string(data), nil
}

// String identifies the source in logs.
func (f *File) String() string {
	return "file:" + f.Path
}
