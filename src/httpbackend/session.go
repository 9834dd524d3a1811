// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpbackend

import (
	"sync"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

// Session is the authenticated state attached to requests.
type Session struct {
	UID          string
	AccessToken  string
	RefreshToken string
	Scopes       []string
}

// SessionStore supplies the current session. ok is false when the user is
// not logged in.
type SessionStore interface {
	Session() (s Session, ok bool)
}

// MemorySession is an in-memory session. It implements [SessionStore] and
// the token store used by the refresh-token handler.
type MemorySession struct {
	mu        sync.RWMutex
	session   Session
	loggedIn  bool
	onLogout  func()
	loggedOut bool
}

// NewMemorySession creates a logged in session. onLogout, if non-nil, is
// called when the session is forcibly logged out.
func NewMemorySession(s Session, onLogout func()) *MemorySession {
	return &MemorySession{session: s, loggedIn: true, onLogout: onLogout}
}

// Session implements [SessionStore].
func (m *MemorySession) Session() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.loggedIn
}

// StoreTokens replaces the token pair after a refresh.
func (m *MemorySession) StoreTokens(t dispatch.Tokens) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.AccessToken = t.Access
	m.session.RefreshToken = t.Refresh
	m.session.Scopes = t.Scopes
}

// ForceLogout drops the session.
func (m *MemorySession) ForceLogout() {
	m.mu.Lock()
	already := m.loggedOut
	m.session = Session{}
	m.loggedIn = false
	m.loggedOut = true
	m.mu.Unlock()

	if !already && m.onLogout != nil {
		m.onLogout()
	}
}
