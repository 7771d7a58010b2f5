package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds how long a turn may stay suspended on one
// permission request before it degrades to a denial.
const DefaultTimeout = 5 * time.Minute

const (
	reasonTimedOut  = "permission request timed out"
	reasonCancelled = "cancelled"
)

// entry pairs a request with its single-fire wakeup. The decision is
// stored in the entry itself so a resolution that lands before the
// waiter subscribes is never lost.
type entry struct {
	req      *Request
	decision *Decision
	done     chan struct{}
}

// Registry tracks pending permission requests and wakes suspended
// waiters when decisions arrive. All mutations happen under one mutex;
// no operation spans a wait while holding it.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*entry
	// resolved keeps terminal records for audit lookups until session
	// cleanup removes them.
	resolved map[string]*Request
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pending:  make(map[string]*entry),
		resolved: make(map[string]*Request),
		logger:   logger,
	}
}

// Waiter is the orchestrator's handle for one registered request.
type Waiter struct {
	registry *Registry
	id       string
	done     <-chan struct{}
}

// Register records a new pending request and returns it together with
// the waiter that will observe its resolution.
func (r *Registry) Register(sessionID, toolName string, toolInput json.RawMessage) (*Request, *Waiter) {
	req := &Request{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		ToolName:  toolName,
		ToolInput: toolInput,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	e := &entry{req: req, done: make(chan struct{})}

	r.mu.Lock()
	r.pending[req.ID] = e
	r.mu.Unlock()

	r.logger.Debug("permission request registered", "id", req.ID, "session", sessionID, "tool", toolName)
	return req, &Waiter{registry: r, id: req.ID, done: e.done}
}

// Resolve applies a decision to a pending request. It returns false when
// the id is unknown or the request is already resolved; the first
// decision always wins and is never overwritten.
func (r *Registry) Resolve(requestID string, decision Decision) bool {
	status := StatusDenied
	if decision.Allowed() {
		status = StatusApproved
	}
	return r.finish(requestID, decision, status)
}

// finish transitions a pending entry to a terminal status, storing the
// decision and firing the waiter exactly once.
func (r *Registry) finish(requestID string, decision Decision, status Status) bool {
	r.mu.Lock()
	e, ok := r.pending[requestID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.pending, requestID)
	e.req.Status = status
	e.req.Message = decision.Message
	e.decision = &decision
	r.resolved[requestID] = e.req
	close(e.done)
	r.mu.Unlock()

	r.logger.Debug("permission request resolved", "id", requestID, "status", status)
	return true
}

// drop removes a pending entry without retaining a record, waking the
// waiter with a cancellation denial. Used when the owning turn goes
// away; a later Resolve for the id simply returns false.
func (r *Registry) drop(requestID string, reason string) {
	r.mu.Lock()
	e, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
		e.req.Status = StatusDenied
		e.req.Message = reason
		d := Deny(reason)
		e.decision = &d
		close(e.done)
	}
	r.mu.Unlock()
}

// Get returns the request for the id, pending or resolved.
func (r *Registry) Get(requestID string) (*Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pending[requestID]; ok {
		return e.req, true
	}
	req, ok := r.resolved[requestID]
	return req, ok
}

// PendingCount reports how many requests are currently awaiting a
// decision.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// DropSession removes every record owned by the session. Pending
// requests resolve as cancelled denials so their waiters do not hang.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	var pendingIDs []string
	for id, e := range r.pending {
		if e.req.SessionID == sessionID {
			pendingIDs = append(pendingIDs, id)
		}
	}
	for id, req := range r.resolved {
		if req.SessionID == sessionID {
			delete(r.resolved, id)
		}
	}
	r.mu.Unlock()

	for _, id := range pendingIDs {
		r.drop(id, reasonCancelled)
	}
}

// Await blocks until the request is resolved, the timeout elapses, or
// ctx is cancelled. A timeout transitions the request to expired and
// yields an implicit denial; cancellation removes the entry entirely.
func (w *Waiter) Await(ctx context.Context, timeout time.Duration) Decision {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return w.decision()
	case <-timer.C:
		// The decision endpoint may have won the race; finish reports
		// whether the expiry actually took effect.
		if w.registry.finish(w.id, Deny(reasonTimedOut), StatusExpired) {
			return Deny(reasonTimedOut)
		}
		return w.decision()
	case <-ctx.Done():
		w.registry.drop(w.id, reasonCancelled)
		return w.decision()
	}
}

// decision reads the stored terminal decision for this waiter's entry.
func (w *Waiter) decision() Decision {
	w.registry.mu.Lock()
	defer w.registry.mu.Unlock()
	if req, ok := w.registry.resolved[w.id]; ok {
		d := Decision{Behavior: BehaviorDeny, Message: req.Message}
		if req.Status == StatusApproved {
			d.Behavior = BehaviorAllow
		}
		return d
	}
	// Entry was dropped by cancellation.
	return Deny(reasonCancelled)
}
