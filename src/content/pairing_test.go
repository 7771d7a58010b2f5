package content

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestPairToolCallsMatched(t *testing.T) {
	var blocks []Block
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("toolu_%d", i)
		blocks = append(blocks, NewToolUseBlock(id, "calculate", json.RawMessage(`{"expression":"1+1"}`)))
	}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("toolu_%d", i)
		blocks = append(blocks, NewToolResultBlock(id, "2", false))
	}

	records := PairToolCalls(blocks)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.ID != fmt.Sprintf("toolu_%d", i) {
			t.Errorf("record %d out of order: %s", i, rec.ID)
		}
		if rec.Result == nil {
			t.Errorf("record %d missing result", i)
		} else if rec.Result.Content != "2" {
			t.Errorf("record %d wrong result: %q", i, rec.Result.Content)
		}
	}
}

func TestPairToolCallsUnmatchedUse(t *testing.T) {
	blocks := []Block{
		NewToolUseBlock("toolu_running", "web_fetch", nil),
	}
	records := PairToolCalls(blocks)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Result != nil {
		t.Errorf("expected nil result for unmatched tool_use")
	}
}

func TestPairToolCallsOrphanResult(t *testing.T) {
	blocks := []Block{
		NewTextBlock("hmm"),
		NewToolResultBlock("toolu_ghost", "late result", true),
	}
	records := PairToolCalls(blocks)
	if len(records) != 1 {
		t.Fatalf("expected exactly one orphan record, got %d", len(records))
	}
	orphan := records[0]
	if orphan.Name != "" {
		t.Errorf("orphan should carry an empty name placeholder, got %q", orphan.Name)
	}
	if orphan.Result == nil || !orphan.Result.IsError {
		t.Errorf("orphan result not surfaced: %+v", orphan.Result)
	}
}

func TestPairToolCallsEmpty(t *testing.T) {
	if records := PairToolCalls([]Block{NewTextBlock("just text")}); len(records) != 0 {
		t.Errorf("expected no records, got %+v", records)
	}
}
