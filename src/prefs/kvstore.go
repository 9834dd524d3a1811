// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package prefs persists the alternative routing state.
//
// A [KeyValueStore] holds raw bytes; [Memory] keeps them in process and
// [FS] writes one locked file per key so several processes can share a
// state directory. [NetworkPrefs] layers the routing keys on top of any
// store and satisfies both dispatch.Prefs and doh.AlternativesStore.
package prefs

import "errors"

// ErrNoSuchKey is returned when a key has never been set.
var ErrNoSuchKey = errors.New("prefs: no such key")

// KeyValueStore is a minimal byte oriented key-value store. Implementations
// must be safe for concurrent use.
type KeyValueStore interface {
	// Get returns the value of key or an error wrapping [ErrNoSuchKey].
	Get(key string) ([]byte, error)

	// Set stores value under key.
	Set(key string, value []byte) error
}
