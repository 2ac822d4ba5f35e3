package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and the local chat console.
// Production deployments use a durable backend; state here does not
// survive a restart.
type MemoryStore struct {
	defaultLesson string

	mu           sync.RWMutex
	sessions     map[string]*Session
	interactions map[string][]*Interaction
	closed       bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(defaultLesson string) *MemoryStore {
	return &MemoryStore{
		defaultLesson: defaultLesson,
		sessions:      make(map[string]*Session),
		interactions:  make(map[string][]*Interaction),
	}
}

// GetOrCreate returns the session for an identity, creating it with
// defaults on first contact.
func (s *MemoryStore) GetOrCreate(ctx context.Context, identity string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	if sess, ok := s.sessions[identity]; ok {
		cp := *sess
		return &cp, nil
	}

	now := time.Now().UTC()
	sess := &Session{
		Identity:  identity,
		Mode:      ModeBilingual,
		LessonID:  s.defaultLesson,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[identity] = sess
	cp := *sess
	return &cp, nil
}

// Update applies a partial update to an existing session.
func (s *MemoryStore) Update(ctx context.Context, identity string, delta Delta) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	sess, ok := s.sessions[identity]
	if !ok {
		return nil, ErrSessionNotFound
	}

	delta.apply(sess, time.Now().UTC())
	cp := *sess
	return &cp, nil
}

// AppendInteraction adds one graded-answer record.
func (s *MemoryStore) AppendInteraction(ctx context.Context, rec *Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	cp := *rec
	s.interactions[rec.SessionID] = append(s.interactions[rec.SessionID], &cp)
	return nil
}

// AverageScore returns the mean over all interaction records.
func (s *MemoryStore) AverageScore(ctx context.Context, identity string) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, 0, ErrStoreClosed
	}

	recs := s.interactions[identity]
	if len(recs) == 0 {
		return 0, 0, nil
	}

	var sum float64
	for _, r := range recs {
		sum += r.Score
	}
	return sum / float64(len(recs)), len(recs), nil
}

// AllSessions returns every known session in identity order.
func (s *MemoryStore) AllSessions(ctx context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		sessions = append(sessions, &cp)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Identity < sessions[j].Identity
	})
	return sessions, nil
}

// Interactions returns the raw log for an identity, in append order.
// Test helper; not part of the Store interface.
func (s *MemoryStore) Interactions(identity string) []*Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*Interaction, len(s.interactions[identity]))
	copy(recs, s.interactions[identity])
	return recs
}

// Ping reports liveness.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
