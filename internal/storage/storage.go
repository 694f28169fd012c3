package storage

import (
	"sync"
	"time"
)

type sessionEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// SessionStore keeps per-buyer state keyed by session id.
type SessionStore[T any] struct {
	sessions map[string]*sessionEntry[T]
	mu       sync.RWMutex
	now      func() time.Time
}

func NewSessionStore[T any]() *SessionStore[T] {
	return &SessionStore[T]{
		sessions: make(map[string]*sessionEntry[T]),
		now:      time.Now,
	}
}

func (s *SessionStore[T]) Get(sessionID string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.sessions[sessionID]
	if !exists {
		var zero T
		return zero, false
	}
	entry.lastSeen = s.now()
	return entry.value, true
}

func (s *SessionStore[T]) Set(sessionID string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &sessionEntry[T]{value: value, lastSeen: s.now()}
}

// GetOrCreate returns the session, building it with create when missing.
func (s *SessionStore[T]) GetOrCreate(sessionID string, create func() T) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.sessions[sessionID]; exists {
		entry.lastSeen = s.now()
		return entry.value, false
	}
	value := create()
	s.sessions[sessionID] = &sessionEntry[T]{value: value, lastSeen: s.now()}
	return value, true
}

func (s *SessionStore[T]) GetAll() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]T, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v.value
	}
	return result
}

func (s *SessionStore[T]) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Expire drops sessions idle for longer than ttl and returns them.
func (s *SessionStore[T]) Expire(ttl time.Duration) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var expired []T
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.value)
			delete(s.sessions, id)
		}
	}
	return expired
}
