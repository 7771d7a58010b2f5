package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// SQLiteStore persists sessions and messages in sqlite so conversations
// survive restarts. Pending permission state is deliberately not
// persisted; only the session store is durable.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// CreateSession inserts a session with a fresh uuid.
func (s *SQLiteStore) CreateSession(ctx context.Context) (*Session, error) {
	sess := newSession(uuid.New().String())
	query := `INSERT INTO sessions (id, title, upstream_conversation_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.Title, sess.UpstreamConversationID, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession fetches a session row together with its messages.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, bool, error) {
	query := `SELECT id, title, upstream_conversation_id, created_at, updated_at FROM sessions WHERE id = ?`
	var sess Session
	err := sqlscan.Get(ctx, s.db, &sess, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	messages, err := s.GetMessages(ctx, id)
	if err != nil {
		return nil, false, err
	}
	sess.Messages = messages
	return &sess, true, nil
}

// GetOrCreateSession inserts the caller-supplied id when it is not
// present; the INSERT OR IGNORE keeps concurrent creators from racing.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, id string) (*Session, error) {
	sess := newSession(id)
	query := `INSERT OR IGNORE INTO sessions (id, title, upstream_conversation_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.Title, sess.UpstreamConversationID, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return nil, err
	}
	existing, ok, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("session vanished during get-or-create")
	}
	return existing, nil
}

// AddMessage appends a message row and bumps the session timestamp in
// one transaction.
func (s *SQLiteStore) AddMessage(ctx context.Context, sessionID string, msg Message) (*Message, error) {
	if _, err := s.GetOrCreateSession(ctx, sessionID); err != nil {
		return nil, err
	}

	msg.ID = uuid.New().String()
	msg.SessionID = sessionID
	msg.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	insert := `INSERT INTO messages (id, session_id, role, content, usage, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Usage, msg.CreatedAt); err != nil {
		tx.Rollback()
		return nil, err
	}
	touch := `UPDATE sessions SET updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, touch, msg.CreatedAt, sessionID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages returns the session's messages in creation order.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	query := `SELECT id, session_id, role, content, usage, created_at FROM messages WHERE session_id = ? ORDER BY rowid`
	messages := []Message{}
	if err := sqlscan.Select(ctx, s.db, &messages, query, sessionID); err != nil {
		return nil, err
	}
	return messages, nil
}

// SetUpstreamConversationID records the provider-side conversation id.
func (s *SQLiteStore) SetUpstreamConversationID(ctx context.Context, sessionID, upstreamID string) error {
	query := `UPDATE sessions SET upstream_conversation_id = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, upstreamID, sessionID)
	return err
}

// ListSessions returns summaries by most recent activity, deriving
// titles from each session's first user message.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Summary, error) {
	query := `SELECT id, title, upstream_conversation_id, created_at, updated_at FROM sessions ORDER BY updated_at DESC`
	var sessions []Session
	if err := sqlscan.Select(ctx, s.db, &sessions, query); err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(sessions))
	for i := range sessions {
		messages, err := s.GetMessages(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Messages = messages
		summaries = append(summaries, sessions[i].Summarize())
	}
	return summaries, nil
}

// DeleteSession removes the session; messages go with it via cascade.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cleanup removes sessions idle for longer than maxAge.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge)
	var ids []string
	if err := sqlscan.Select(ctx, s.db, &ids, `SELECT id FROM sessions WHERE updated_at <= ?`, cutoff); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
