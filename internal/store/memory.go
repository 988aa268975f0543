package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
)

// MemoryStore is an in-memory SessionStore implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

func (s *MemoryStore) List() []*domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summary := *sess
		summary.Messages = nil
		summary.Document = sess.Document.Clone()
		out = append(out, &summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out
}

// Get returns a copy so callers can read or marshal it without holding the
// store lock against concurrent mutation.
func (s *MemoryStore) Get(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := *sess
	out.Document = sess.Document.Clone()
	out.Messages = append([]domain.Message(nil), sess.Messages...)
	return &out
}

func (s *MemoryStore) CreateEmpty(name string) *domain.Session {
	if name == "" {
		name = domain.DefaultSessionName
	}

	now := time.Now()
	sess := &domain.Session{
		ID:           uuid.New().String(),
		Name:         name,
		Document:     domain.NewDocument(),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *MemoryStore) Append(sessionID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Messages = append(sess.Messages, msg)
		sess.LastActiveAt = time.Now()
	}
}

func (s *MemoryStore) SetSection(sessionID string, key domain.SectionKey, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errSessionNotFound(sessionID)
	}
	if err := sess.Document.Set(key, content); err != nil {
		return err
	}
	sess.LastActiveAt = time.Now()
	return nil
}

func (s *MemoryStore) Rename(sessionID, name string, userNamed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Name = name
		sess.UserNamed = userNamed
		sess.LastActiveAt = time.Now()
	}
}

func (s *MemoryStore) Upsert(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
