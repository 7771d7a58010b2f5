package store

import (
	"context"
	"time"
)

// Store is the session/message contract shared by the in-memory and
// sqlite implementations. Every operation is atomic from the caller's
// point of view: no call observes another call's partial mutation.
type Store interface {
	// CreateSession allocates a session with a fresh unique id.
	CreateSession(ctx context.Context) (*Session, error)

	// GetSession looks a session up without creating it.
	GetSession(ctx context.Context, id string) (*Session, bool, error)

	// GetOrCreateSession returns the existing session or atomically
	// creates one under the caller-supplied id.
	GetOrCreateSession(ctx context.Context, id string) (*Session, error)

	// AddMessage assigns id and timestamp, appends the message to the
	// session (creating it when absent) and bumps the session's
	// UpdatedAt. The finalized message is returned.
	AddMessage(ctx context.Context, sessionID string, msg Message) (*Message, error)

	// GetMessages returns the session's messages in append order, or an
	// empty slice when the session does not exist.
	GetMessages(ctx context.Context, sessionID string) ([]Message, error)

	// SetUpstreamConversationID records the provider-side conversation
	// id for the session. Unknown sessions are a silent no-op.
	SetUpstreamConversationID(ctx context.Context, sessionID, upstreamID string) error

	// ListSessions returns summaries ordered by UpdatedAt descending.
	ListSessions(ctx context.Context) ([]Summary, error)

	// DeleteSession removes the session and its messages, reporting
	// whether it existed.
	DeleteSession(ctx context.Context, id string) (bool, error)

	// Cleanup removes sessions whose UpdatedAt is older than
	// now-maxAge, returning the removed ids so the caller can retire
	// associated permission records.
	Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error)
}
