// Package content defines the sum-typed content model for persisted
// messages: plain text segments mixed with embedded tool-call and
// tool-result records.
package content

import (
	"encoding/json"
	"fmt"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
)

// Block is a single typed segment of message content.
type Block struct {
	Type BlockType `json:"type"`

	// Text is set for text blocks.
	Text string `json:"text,omitempty"`

	// ID, Name and Input are set for tool_use blocks.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID, Content and IsError are set for tool_result blocks.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) Block {
	return Block{Type: BlockTypeText, Text: text}
}

// NewToolUseBlock creates a tool_use block.
func NewToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock creates a tool_result block.
func NewToolResultBlock(toolUseID, result string, isError bool) Block {
	return Block{Type: BlockTypeToolResult, ToolUseID: toolUseID, Content: result, IsError: isError}
}

// Validate checks that the block carries the fields its type requires.
func (b Block) Validate() error {
	switch b.Type {
	case BlockTypeText:
		return nil
	case BlockTypeToolUse:
		if b.ID == "" {
			return fmt.Errorf("tool_use block missing id")
		}
		return nil
	case BlockTypeToolResult:
		if b.ToolUseID == "" {
			return fmt.Errorf("tool_result block missing tool_use_id")
		}
		return nil
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
}

// PlainText concatenates the text of all text blocks.
func PlainText(blocks []Block) string {
	var out string
	for _, b := range blocks {
		if b.Type == BlockTypeText {
			out += b.Text
		}
	}
	return out
}
