// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package prefs

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// FS is a [KeyValueStore] keeping one file per key under a base
// directory. Files are read and written under an advisory lock.
type FS struct {
	basedir string
}

// NewFS creates the base directory if needed and returns an [FS] store.
func NewFS(basedir string) (*FS, error) {
	return newFS(basedir, os.MkdirAll)
}

type mkdirAllFunc func(path string, perm fs.FileMode) error

func newFS(basedir string, mkdir mkdirAllFunc) (*FS, error) {
	if err := mkdir(basedir, 0o700); err != nil {
		return nil, fmt.Errorf("prefs: create state dir: %w", err)
	}
	return &FS{basedir: basedir}, nil
}

// Dir returns the base directory.
func (s *FS) Dir() string { return s.basedir }

func (s *FS) filename(key string) string {
	// Keys never escape the base directory.
	key = strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(key)
	return filepath.Join(s.basedir, key)
}

// Get implements [KeyValueStore].
func (s *FS) Get(key string) ([]byte, error) {
	data, err := lockedfile.Read(s.filename(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchKey, err.Error())
	}
	return data, nil
}

// Set implements [KeyValueStore].
func (s *FS) Set(key string, value []byte) error {
	return lockedfile.Write(s.filename(key), bytes.NewReader(value), 0o600)
}
