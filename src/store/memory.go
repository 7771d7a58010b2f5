package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps all sessions in process memory. It is the default
// store; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateSession allocates a session with a fresh uuid.
func (s *MemoryStore) CreateSession(ctx context.Context) (*Session, error) {
	sess := newSession(uuid.New().String())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.clone(), nil
}

// GetSession looks a session up; it never creates one.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return sess.clone(), true, nil
}

// GetOrCreateSession returns the session for the caller-supplied id,
// creating it atomically when absent.
func (s *MemoryStore) GetOrCreateSession(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id)
		s.sessions[id] = sess
	}
	return sess.clone(), nil
}

// AddMessage appends to the session's message list, creating the
// session first when needed.
func (s *MemoryStore) AddMessage(ctx context.Context, sessionID string, msg Message) (*Message, error) {
	msg.ID = uuid.New().String()
	msg.SessionID = sessionID
	msg.CreatedAt = time.Now()

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = newSession(sessionID)
		s.sessions[sessionID] = sess
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = msg.CreatedAt
	s.mu.Unlock()

	return &msg, nil
}

// GetMessages returns messages in append order; absent sessions yield
// an empty slice, not an error.
func (s *MemoryStore) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return []Message{}, nil
	}
	out := make([]Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, nil
}

// SetUpstreamConversationID records the provider-side conversation id.
func (s *MemoryStore) SetUpstreamConversationID(ctx context.Context, sessionID, upstreamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.UpstreamConversationID = upstreamID
	}
	return nil
}

// ListSessions returns summaries ordered by most recent activity.
func (s *MemoryStore) ListSessions(ctx context.Context) ([]Summary, error) {
	s.mu.Lock()
	summaries := make([]Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, sess.Summarize())
	}
	s.mu.Unlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// DeleteSession removes a session and its messages.
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

// Cleanup removes sessions idle for longer than maxAge.
func (s *MemoryStore) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, sess := range s.sessions {
		if !sess.UpdatedAt.After(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// clone copies the session so callers never alias store-owned state.
func (sess *Session) clone() *Session {
	out := *sess
	out.Messages = make([]Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return &out
}
