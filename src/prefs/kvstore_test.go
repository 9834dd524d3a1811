// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package prefs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	fsStore, err := NewFS(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	stores := map[string]KeyValueStore{
		"memory":      NewMemory(),
		"zero memory": &Memory{},
		"fs":          fsStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("missing")
			assert.ErrorIs(t, err, ErrNoSuchKey)

			require.NoError(t, store.Set("key", []byte("value")))
			got, err := store.Get("key")
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), got)

			require.NoError(t, store.Set("key", []byte("other")))
			got, err = store.Get("key")
			require.NoError(t, err)
			assert.Equal(t, []byte("other"), got)
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	value := []byte("abc")
	require.NoError(t, m.Set("k", value))
	value[0] = 'x'

	got, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	m.Flush()
	_, err = m.Get("k")
	assert.ErrorIs(t, err, ErrNoSuchKey)
}

func TestFSKeysStayInBaseDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("../escape", []byte("x")))
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
	assert.True(t, os.IsNotExist(err))

	got, err := s.Get("../escape")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	assert.Equal(t, dir, s.Dir())
}

func TestNewFSMkdirFailure(t *testing.T) {
	boom := errors.New("read-only file system")
	_, err := newFS("/nowhere", func(string, fs.FileMode) error { return boom })
	assert.ErrorIs(t, err, boom)
}
