// Package store owns conversational state: sessions and their
// append-only message lists.
package store

import (
	"strings"
	"time"
	"unicode/utf8"

	"chatgate/src/content"
)

// DefaultTitle is assigned to sessions created without any message.
const DefaultTitle = "new session"

// titleBudget caps derived titles, in runes.
const titleBudget = 50

// Session is one conversation. The ID is unique and immutable after
// creation; Messages are owned by the session and only ever appended.
type Session struct {
	ID    string `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
	// UpstreamConversationID correlates the session with the model
	// provider's own conversation, when resuming context upstream.
	UpstreamConversationID string    `json:"upstream_conversation_id,omitempty" db:"upstream_conversation_id"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`

	Messages []Message `json:"-" db:"-"`
}

// Message is one immutable conversation entry. Content uses the
// content-package encoding: plain text or serialized typed blocks.
type Message struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Usage     string    `json:"usage,omitempty" db:"usage"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Summary is the listing projection of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize builds the listing projection, deriving a title from the
// first user message when none was set explicitly.
func (s *Session) Summarize() Summary {
	title := s.Title
	if title == "" || title == DefaultTitle {
		if derived := deriveTitle(s.Messages); derived != "" {
			title = derived
		}
	}
	if title == "" {
		title = DefaultTitle
	}
	return Summary{ID: s.ID, Title: title, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

// deriveTitle truncates the first user message to the title budget,
// appending an ellipsis when cut.
func deriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		text := strings.TrimSpace(content.PlainText(content.Decode(m.Content)))
		if text == "" {
			return ""
		}
		if utf8.RuneCountInString(text) <= titleBudget {
			return text
		}
		runes := []rune(text)
		return string(runes[:titleBudget]) + "…"
	}
	return ""
}
