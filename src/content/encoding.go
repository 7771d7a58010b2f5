package content

import (
	"encoding/json"
	"strings"
)

// Inline marker delimiters used by the legacy encoding. A tool record is
// embedded in running text as [[tool_use {json}]] or [[tool_result {json}]].
const (
	markerOpen  = "[["
	markerClose = "]]"
)

// Encode serializes blocks to the canonical storage encoding: a single
// text block stays a plain string, anything else becomes a JSON array of
// typed blocks.
func Encode(blocks []Block) string {
	if len(blocks) == 1 && blocks[0].Type == BlockTypeText {
		return blocks[0].Text
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		// Blocks contain only marshalable fields; treat failure as empty.
		return "[]"
	}
	return string(data)
}

// Decode parses persisted message content. It accepts the canonical JSON
// array form, the legacy inline-marker form, and bare text.
func Decode(s string) []Block {
	if s == "" {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		if blocks, ok := decodeJSONArray(s); ok {
			return blocks
		}
	}
	if strings.Contains(s, markerOpen) {
		if blocks, ok := decodeInline(s); ok {
			return blocks
		}
	}
	return []Block{NewTextBlock(s)}
}

func decodeJSONArray(s string) ([]Block, bool) {
	var blocks []Block
	if err := json.Unmarshal([]byte(s), &blocks); err != nil {
		return nil, false
	}
	for _, b := range blocks {
		switch b.Type {
		case BlockTypeText, BlockTypeToolUse, BlockTypeToolResult:
		default:
			return nil, false
		}
	}
	return blocks, true
}

// decodeInline scans for [[tool_use {...}]] and [[tool_result {...}]]
// markers, turning the stretches between them into text blocks. Markers
// whose payload is not valid JSON are left in the surrounding text.
func decodeInline(s string) ([]Block, bool) {
	var blocks []Block
	var text strings.Builder
	found := false

	flush := func() {
		if text.Len() > 0 {
			blocks = append(blocks, NewTextBlock(text.String()))
			text.Reset()
		}
	}

	rest := s
	for {
		start := strings.Index(rest, markerOpen)
		if start < 0 {
			text.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], markerClose)
		if end < 0 {
			text.WriteString(rest)
			break
		}
		end += start

		inner := rest[start+len(markerOpen) : end]
		block, ok := parseMarker(inner)
		if !ok {
			text.WriteString(rest[:end+len(markerClose)])
			rest = rest[end+len(markerClose):]
			continue
		}

		text.WriteString(rest[:start])
		flush()
		blocks = append(blocks, block)
		found = true
		rest = rest[end+len(markerClose):]
	}
	flush()

	return blocks, found
}

func parseMarker(inner string) (Block, bool) {
	var kind BlockType
	switch {
	case strings.HasPrefix(inner, string(BlockTypeToolUse)+" "):
		kind = BlockTypeToolUse
		inner = inner[len(BlockTypeToolUse)+1:]
	case strings.HasPrefix(inner, string(BlockTypeToolResult)+" "):
		kind = BlockTypeToolResult
		inner = inner[len(BlockTypeToolResult)+1:]
	default:
		return Block{}, false
	}

	var block Block
	if err := json.Unmarshal([]byte(inner), &block); err != nil {
		return Block{}, false
	}
	block.Type = kind
	if block.Validate() != nil {
		return Block{}, false
	}
	return block, true
}
