// Package permission bridges a suspended generation turn and an
// authorization decision arriving on a separate request. The registry's
// memory is the only state the two sides share.
package permission

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a permission request. Transitions are
// monotone: once non-pending a request never changes again.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// Behavior is the normalized decision verb.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
)

// Decision is a resolved outcome for a permission request. Message
// carries the human-readable reason for denials or auxiliary
// instructions for approvals.
type Decision struct {
	Behavior Behavior `json:"behavior"`
	Message  string   `json:"message,omitempty"`
}

// Allowed reports whether the decision permits the tool call.
func (d Decision) Allowed() bool { return d.Behavior == BehaviorAllow }

// Deny builds a denial with the given reason.
func Deny(reason string) Decision {
	return Decision{Behavior: BehaviorDeny, Message: reason}
}

// Allow builds an approval.
func Allow() Decision {
	return Decision{Behavior: BehaviorAllow}
}

// Request is one gated tool call awaiting (or having received) a
// decision.
type Request struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	// Message records the decision reason once resolved.
	Message string `json:"message,omitempty"`
}
