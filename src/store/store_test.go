package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("AddMessagePreservesOrder", func(t *testing.T) {
		s := newStore(t)
		sess, err := s.CreateSession(ctx)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := s.AddMessage(ctx, sess.ID, Message{Role: "user", Content: fmt.Sprintf("message %d", i)})
			require.NoError(t, err)
		}

		messages, err := s.GetMessages(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, messages, 5)
		for i, m := range messages {
			require.Equal(t, fmt.Sprintf("message %d", i), m.Content)
			require.NotEmpty(t, m.ID)
			require.Equal(t, sess.ID, m.SessionID)
		}
	})

	t.Run("GetOrCreateIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		first, err := s.GetOrCreateSession(ctx, "client-minted-id")
		require.NoError(t, err)
		second, err := s.GetOrCreateSession(ctx, "client-minted-id")
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)
		require.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
	})

	t.Run("GetSessionDoesNotCreate", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.GetSession(ctx, "never-created")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("GetMessagesAbsentSession", func(t *testing.T) {
		s := newStore(t)
		messages, err := s.GetMessages(ctx, "missing")
		require.NoError(t, err)
		require.Empty(t, messages)
	})

	t.Run("AddMessageCreatesSession", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AddMessage(ctx, "implicit", Message{Role: "user", Content: "hi"})
		require.NoError(t, err)
		_, ok, err := s.GetSession(ctx, "implicit")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("ListSessionsOrder", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateSession(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		b, err := s.CreateSession(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		// Touch a so it becomes the most recent.
		_, err = s.AddMessage(ctx, a.ID, Message{Role: "user", Content: "bump"})
		require.NoError(t, err)

		summaries, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		require.Equal(t, a.ID, summaries[0].ID)
		require.Equal(t, b.ID, summaries[1].ID)
	})

	t.Run("TitleDerivedFromFirstUserMessage", func(t *testing.T) {
		s := newStore(t)
		sess, err := s.CreateSession(ctx)
		require.NoError(t, err)
		long := "this is a rather long first user message that should certainly be truncated"
		_, err = s.AddMessage(ctx, sess.ID, Message{Role: "user", Content: long})
		require.NoError(t, err)

		summaries, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		require.Equal(t, string([]rune(long)[:50])+"…", summaries[0].Title)
	})

	t.Run("SetUpstreamConversationID", func(t *testing.T) {
		s := newStore(t)
		sess, err := s.CreateSession(ctx)
		require.NoError(t, err)

		require.NoError(t, s.SetUpstreamConversationID(ctx, sess.ID, "msg_01abc"))
		got, ok, err := s.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "msg_01abc", got.UpstreamConversationID)

		// Unknown sessions are ignored without error.
		require.NoError(t, s.SetUpstreamConversationID(ctx, "missing", "msg_02"))
	})

	t.Run("DeleteSession", func(t *testing.T) {
		s := newStore(t)
		sess, err := s.CreateSession(ctx)
		require.NoError(t, err)

		removed, err := s.DeleteSession(ctx, sess.ID)
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = s.DeleteSession(ctx, sess.ID)
		require.NoError(t, err)
		require.False(t, removed)
	})

	t.Run("CleanupZeroAgeRemovesEverything", func(t *testing.T) {
		s := newStore(t)
		sess, err := s.CreateSession(ctx)
		require.NoError(t, err)
		_, err = s.AddMessage(ctx, sess.ID, Message{Role: "user", Content: "active just now"})
		require.NoError(t, err)

		removed, err := s.Cleanup(ctx, 0)
		require.NoError(t, err)
		require.Contains(t, removed, sess.ID)

		summaries, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Empty(t, summaries)
	})

	t.Run("CleanupKeepsFreshSessions", func(t *testing.T) {
		s := newStore(t)
		sess, err := s.CreateSession(ctx)
		require.NoError(t, err)

		removed, err := s.Cleanup(ctx, time.Hour)
		require.NoError(t, err)
		require.Empty(t, removed)

		_, ok, err := s.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		path := filepath.Join(t.TempDir(), "chatgate.db")
		s, err := OpenSQLite(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
