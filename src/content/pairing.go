package content

// ToolCallRecord pairs a tool_use block with the tool_result block that
// carries the same identifier. Result is nil while the call has no
// recorded outcome. Orphan results (no matching tool_use) are surfaced
// with an empty Name so no data is dropped.
type ToolCallRecord struct {
	ID     string
	Name   string
	Input  []byte
	Result *ToolCallResult
}

// ToolCallResult is the outcome half of a ToolCallRecord.
type ToolCallResult struct {
	Content string
	IsError bool
}

// PairToolCalls projects one message's blocks into matched
// (tool_use, tool_result) pairs, preserving tool_use order. It is a pure
// function recomputed on read; nothing here is persisted.
func PairToolCalls(blocks []Block) []ToolCallRecord {
	results := make(map[string]*ToolCallResult)
	var resultOrder []string
	for _, b := range blocks {
		if b.Type != BlockTypeToolResult {
			continue
		}
		if _, seen := results[b.ToolUseID]; seen {
			continue
		}
		results[b.ToolUseID] = &ToolCallResult{Content: b.Content, IsError: b.IsError}
		resultOrder = append(resultOrder, b.ToolUseID)
	}

	var records []ToolCallRecord
	claimed := make(map[string]bool)
	for _, b := range blocks {
		if b.Type != BlockTypeToolUse {
			continue
		}
		records = append(records, ToolCallRecord{
			ID:     b.ID,
			Name:   b.Name,
			Input:  b.Input,
			Result: results[b.ID],
		})
		claimed[b.ID] = true
	}

	// Orphan results keep their original order after the real pairs.
	for _, id := range resultOrder {
		if claimed[id] {
			continue
		}
		records = append(records, ToolCallRecord{
			ID:     id,
			Name:   "",
			Result: results[id],
		})
	}

	return records
}
