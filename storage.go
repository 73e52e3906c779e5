package video_batch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Storage is the filesystem as seen by the Fetcher and Batch. Size reports ok=false, with no error, if the file does
// not exist.
type Storage interface {
	MkdirAll(dir string) error
	Size(path string) (size int64, ok bool, err error)
	Create(path string) (io.WriteCloser, error)
	Remove(path string) error
}

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct{}

func (LocalStorage) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func (LocalStorage) Size(path string) (int64, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	if !info.Mode().IsRegular() {
		return 0, false, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), true, nil
}

func (LocalStorage) Create(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Remove deletes the file at path; a file that is already gone is not an error.
func (LocalStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// isComplete reports whether path holds a file larger than minSize.
func isComplete(storage Storage, path string, minSize int64) (bool, error) {
	size, ok, err := storage.Size(path)
	if err != nil || !ok {
		return false, err
	}
	return size > minSize, nil
}
