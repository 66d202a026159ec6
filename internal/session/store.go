// Package session keeps one flat chat transcript per session.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/ev-assistant/internal/metrics"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn of a transcript. Entries are never mutated.
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type transcript struct {
	createdAt time.Time
	entries   []Entry
}

// Store holds transcripts keyed by session ID. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*transcript
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*transcript),
		now:      time.Now,
	}
}

// Create opens a new session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &transcript{createdAt: s.now()}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return id
}

// Exists reports whether the session is open.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Append adds entries to a session in order.
func (s *Store) Append(id string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	for _, e := range entries {
		if e.At.IsZero() {
			e.At = s.now()
		}
		t.entries = append(t.entries, e)
	}
	return nil
}

// Exchange records a user message and the assistant reply as one step.
func (s *Store) Exchange(id, question, reply string) error {
	now := s.now()
	return s.Append(id,
		Entry{Role: RoleUser, Text: question, At: now},
		Entry{Role: RoleAssistant, Text: reply, At: now},
	)
}

// Transcript returns a copy of the session's entries.
func (s *Store) Transcript(id string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out, nil
}

// Delete ends a session and drops its transcript.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PruneIdle drops sessions created before the cutoff and returns how many
// were removed.
func (s *Store) PruneIdle(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for id, t := range s.sessions {
		last := t.createdAt
		if n := len(t.entries); n > 0 {
			last = t.entries[n-1].At
		}
		if last.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return removed
}
