package permission

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(nil)
}

func TestResolveIsIdempotent(t *testing.T) {
	r := testRegistry()
	req, _ := r.Register("sess-1", "write_file", json.RawMessage(`{"path":"a.txt"}`))

	require.True(t, r.Resolve(req.ID, Allow()), "first resolve should succeed")
	assert.False(t, r.Resolve(req.ID, Deny("changed my mind")), "second resolve should be rejected")

	got, ok := r.Get(req.ID)
	require.True(t, ok, "resolved request should remain readable")
	assert.Equal(t, StatusApproved, got.Status, "second resolve must not overwrite the first")
}

func TestResolveUnknownID(t *testing.T) {
	r := testRegistry()
	assert.False(t, r.Resolve("nope", Allow()))
}

func TestAwaitReceivesDecision(t *testing.T) {
	r := testRegistry()
	req, waiter := r.Register("sess-1", "write_file", nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Resolve(req.ID, Deny("not on my watch"))
	}()

	d := waiter.Await(context.Background(), time.Second)
	assert.False(t, d.Allowed())
	assert.Equal(t, "not on my watch", d.Message)
}

func TestResolveBeforeAwait(t *testing.T) {
	r := testRegistry()
	req, waiter := r.Register("sess-1", "run_command", nil)

	// Decision lands before anyone is waiting; it must not be lost.
	require.True(t, r.Resolve(req.ID, Allow()))

	d := waiter.Await(context.Background(), time.Second)
	assert.True(t, d.Allowed(), "stored decision was lost")
}

func TestAwaitTimeout(t *testing.T) {
	r := testRegistry()
	req, waiter := r.Register("sess-1", "write_file", nil)

	start := time.Now()
	d := waiter.Await(context.Background(), 30*time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.False(t, d.Allowed(), "timeout must yield a denial")
	assert.Equal(t, "permission request timed out", d.Message)

	got, ok := r.Get(req.ID)
	require.True(t, ok)
	assert.Equal(t, StatusExpired, got.Status)
	// A late decision is rejected.
	assert.False(t, r.Resolve(req.ID, Allow()))
}

func TestAwaitCancellation(t *testing.T) {
	r := testRegistry()
	req, waiter := r.Register("sess-1", "write_file", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	d := waiter.Await(ctx, time.Minute)
	assert.False(t, d.Allowed(), "cancellation must yield a denial")
	assert.Equal(t, "cancelled", d.Message)

	// Cancellation is terminal: the entry is gone and a late resolve
	// reports failure instead of silently succeeding.
	assert.False(t, r.Resolve(req.ID, Allow()))
	assert.Zero(t, r.PendingCount())
}

func TestDropSession(t *testing.T) {
	r := testRegistry()
	req1, waiter := r.Register("sess-1", "write_file", nil)
	req2, _ := r.Register("sess-2", "write_file", nil)
	r.Resolve(req2.ID, Allow())

	done := make(chan Decision, 1)
	go func() {
		done <- waiter.Await(context.Background(), time.Minute)
	}()
	time.Sleep(10 * time.Millisecond)

	r.DropSession("sess-1")

	select {
	case d := <-done:
		assert.False(t, d.Allowed(), "dropped session waiter should observe a denial")
	case <-time.After(time.Second):
		t.Fatal("waiter hung after DropSession")
	}

	_, ok := r.Get(req1.ID)
	assert.False(t, ok, "dropped session request should be gone")
	// Other sessions' records are untouched.
	_, ok = r.Get(req2.ID)
	assert.True(t, ok)
}
