package server

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ResourceResolver opens static resources by request path.
type ResourceResolver interface {
	Resolve(path string) (io.ReadCloser, error)
}

// FileSystemResolver serves files under Root. Paths that escape Root are
// rejected.
type FileSystemResolver struct {
	Root string
}

func NewFileSystemResolver(root string) *FileSystemResolver {
	return &FileSystemResolver{Root: root}
}

func (r *FileSystemResolver) Resolve(path string) (io.ReadCloser, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	full := filepath.Join(r.Root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(r.Root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("resource outside root: %s", path)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("resource is a directory: %s", path)
	}
	return f, nil
}
