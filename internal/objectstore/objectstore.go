// Package objectstore keeps uploaded objects (visit photos) under a root
// directory and maps object paths to public URLs.
package objectstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidPath is returned for object paths that escape the root.
var ErrInvalidPath = errors.New("invalid object path")

// Store is a filesystem-backed object store.
type Store struct {
	root    string
	baseURL string
}

// New creates a store rooted at dir. baseURL is the public prefix objects
// are served under, e.g. http://localhost:8080/storage.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object directory %s: %w", dir, err)
	}
	return &Store{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes an object, replacing any existing one, and returns its size.
func (s *Store) Put(objectPath string, r io.Reader) (int64, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("creating object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("creating object: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := os.Remove(tmp.Name()); rerr != nil {
			fmt.Printf("warning: removing partial upload: %v\n", rerr)
		}
		return 0, fmt.Errorf("writing object %s: %w", objectPath, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return 0, fmt.Errorf("storing object %s: %w", objectPath, err)
	}
	return n, nil
}

// Open returns a reader for an object. The caller closes it.
func (s *Store) Open(objectPath string) (*os.File, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", objectPath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", objectPath, err)
	}
	return f, nil
}

// DeletePrefix removes every object under prefix. A missing prefix is not an error.
func (s *Store) DeletePrefix(prefix string) error {
	full, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if full == filepath.Clean(s.root) {
		return fmt.Errorf("%w: refusing to delete the root", ErrInvalidPath)
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("deleting %s: %w", prefix, err)
	}
	return nil
}

// URL returns the public URL of an object.
func (s *Store) URL(objectPath string) string {
	return s.baseURL + "/" + strings.TrimLeft(path.Clean("/"+objectPath), "/")
}

// resolve maps a slash-separated object path to a file under root.
func (s *Store) resolve(objectPath string) (string, error) {
	if objectPath == "" || strings.Contains(objectPath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	for _, part := range strings.Split(objectPath, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
		}
	}
	clean := path.Clean("/" + objectPath)
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
