package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wenyongqd/anniversary/internal/fileutil"
	"github.com/wenyongqd/anniversary/internal/services"
)

// FilesPrefix is the URL path under which the gateway server exposes FSStore objects.
const FilesPrefix = "/files/"

// FSStore keeps objects beneath a local directory.
type FSStore struct {
	root          string
	publicBaseURL string
}

// NewFSStore prepares root and returns a store whose URLs start with publicBaseURL.
func NewFSStore(root, publicBaseURL string) (*FSStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "fs", "blob directory is required", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "fs", "create blob directory", err)
	}
	return &FSStore{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Put writes the object atomically and returns its public URL.
func (s *FSStore) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.resolve(obj.Name)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(target, obj.Data, 0o644); err != nil {
		return "", services.Wrap(services.ErrExternal, "blobstore", "fs put", "write object", err)
	}
	return s.publicBaseURL + FilesPrefix + obj.Name, nil
}

// Open returns the stored object and its content type.
func (s *FSStore) Open(name string) (*os.File, string, error) {
	target, err := s.resolve(name)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", services.Wrap(services.ErrNotFound, "blobstore", "fs open", name, nil)
		}
		return nil, "", services.Wrap(services.ErrExternal, "blobstore", "fs open", name, err)
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return file, contentType, nil
}

func (s *FSStore) resolve(name string) (string, error) {
	if !ValidName(name) {
		return "", services.Wrap(services.ErrValidation, "blobstore", "fs", fmt.Sprintf("invalid object name %q", name), nil)
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}

// ValidName reports whether name is a clean relative slash path with no parent references.
func ValidName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	if path.Clean(name) != name {
		return false
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." || segment == "." || strings.HasPrefix(segment, ".upload-") {
			return false
		}
	}
	return true
}
