/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2026 The verto-go-sdk authors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package vertosdk

import "sync"

// SessionStore persists the session id across client instances so a new
// client can resume the server-side session of a destroyed one. Load
// returns the empty string when nothing is stored.
type SessionStore interface {
	Load() string
	Save(sessid string)
}

// memoryStore is the process-wide default store.
type memoryStore struct {
	mu     sync.Mutex
	sessid string
}

func (s *memoryStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessid
}

func (s *memoryStore) Save(sessid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessid = sessid
}

var defaultStore = &memoryStore{}

// DefaultSessionStore returns the shared in-memory store used when a
// Config does not inject one.
func DefaultSessionStore() SessionStore { return defaultStore }
