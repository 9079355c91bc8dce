package internal

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FullPathname returns an absolute version of the given filename.
func FullPathname(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return filename, nil
	}
	wd, err := os.Getwd()
	return filepath.Join(wd, filename), err
}

// MakeWorkdir creates a fresh directory below root that is owned by
// exactly one run. The directory name contains a random UUID, so that
// concurrent runs never share intermediate files.
func MakeWorkdir(root, prefix string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, prefix+"-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// UniqueFilename returns a filename in dir that no other batch of
// the same run uses.
func UniqueFilename(dir, prefix, suffix string) string {
	return filepath.Join(dir, prefix+"-"+uuid.New().String()+suffix)
}

// Close closes c, and stores the result in *err if *err is still nil.
// Use it in deferred calls for files that are written.
func Close(c interface{ Close() error }, err *error) {
	if nerr := c.Close(); *err == nil {
		*err = nerr
	}
}
