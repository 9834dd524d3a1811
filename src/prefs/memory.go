// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package prefs

import "sync"

// Memory is an in-process [KeyValueStore]. The zero value is ready to use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty [Memory] store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements [KeyValueStore].
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	value, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNoSuchKey
	}
	return append([]byte(nil), value...), nil
}

// Set implements [KeyValueStore].
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

// Flush removes all entries.
func (m *Memory) Flush() {
	m.mu.Lock()
	m.entries = make(map[string][]byte)
	m.mu.Unlock()
}
