// Package aisdk defines the model-client boundary: request and message
// types, the streaming interface, and tool call contracts.
package aisdk

import (
	"context"
	"encoding/json"
	"fmt"

	jsonschema "github.com/swaggest/jsonschema-go"

	"chatgate/src/content"
)

// Message is a single conversation entry sent to the model. Content is
// the same block model the store persists.
type Message struct {
	Role   string          `json:"role"`
	Blocks []content.Block `json:"blocks"`
}

// ToolSpec describes one callable tool to the model.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResponse is the outcome of executing one tool call.
type ToolResponse struct {
	Content []byte `json:"content"`
	IsError bool   `json:"is_error"`
}

// ErrorResponse builds an error-flagged tool response from a message.
func ErrorResponse(format string, args ...any) *ToolResponse {
	return &ToolResponse{Content: []byte(fmt.Sprintf(format, args...)), IsError: true}
}

// ChatRequest is one generation call against the model.
type ChatRequest struct {
	Model     string     `json:"model"`
	System    string     `json:"system,omitempty"`
	Messages  []Message  `json:"messages"`
	Tools     []ToolSpec `json:"tools,omitempty"`
	MaxTokens int        `json:"max_tokens,omitempty"`
}

// Usage is the token accounting reported by the model.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage report into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// CostEstimate is a rough dollar figure derived from usage.
type CostEstimate struct {
	TotalCost float64 `json:"total_cost"`
	Currency  string  `json:"currency"`
}

// ModelClient is the upstream model transport. Implementations must be
// safe for concurrent turns.
type ModelClient interface {
	// StreamChat starts one streaming generation call.
	StreamChat(ctx context.Context, req *ChatRequest) (Stream, error)

	// Model reports the default model identifier.
	Model() string
}
