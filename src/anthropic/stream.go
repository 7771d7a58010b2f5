package anthropic

import (
	"encoding/json"
	"io"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"chatgate/src/aisdk"
)

// stream adapts the SDK's SSE stream to aisdk.Stream. Tool input JSON
// arrives as partial fragments and is buffered until the content block
// closes.
type stream struct {
	raw       *ssestream.Stream[sdk.MessageStreamEventUnion]
	pending   []*aisdk.StreamEvent
	buffers   map[int64]*toolBuffer
	usage     aisdk.Usage
	messageID string
	done      bool
}

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func (b *toolBuffer) finalInput() json.RawMessage {
	joined := strings.TrimSpace(strings.Join(b.fragments, ""))
	if joined == "" {
		joined = "{}"
	}
	return json.RawMessage(joined)
}

func newStream(raw *ssestream.Stream[sdk.MessageStreamEventUnion]) *stream {
	return &stream{
		raw:     raw,
		buffers: make(map[int64]*toolBuffer),
	}
}

// Recv returns the next stream event, or io.EOF once the message is
// complete.
func (s *stream) Recv() (*aisdk.StreamEvent, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return nil, io.EOF
		}
		if !s.raw.Next() {
			if err := s.raw.Err(); err != nil {
				return nil, err
			}
			s.done = true
			continue
		}
		s.process(s.raw.Current())
	}
}

func (s *stream) process(event sdk.MessageStreamEventUnion) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		s.messageID = ev.Message.ID
		s.usage.InputTokens = int(ev.Message.Usage.InputTokens)

	case sdk.ContentBlockStartEvent:
		if block, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			s.buffers[ev.Index] = &toolBuffer{id: block.ID, name: block.Name}
		}

	case sdk.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text != "" {
				s.emit(&aisdk.StreamEvent{Kind: aisdk.EventTextDelta, Text: delta.Text})
			}
		case sdk.InputJSONDelta:
			if buf, ok := s.buffers[ev.Index]; ok && delta.PartialJSON != "" {
				buf.fragments = append(buf.fragments, delta.PartialJSON)
			}
		}

	case sdk.ContentBlockStopEvent:
		if buf, ok := s.buffers[ev.Index]; ok {
			delete(s.buffers, ev.Index)
			s.emit(&aisdk.StreamEvent{
				Kind: aisdk.EventToolUse,
				ToolCall: &aisdk.ToolCall{
					ID:    buf.id,
					Name:  buf.name,
					Input: buf.finalInput(),
				},
			})
		}

	case sdk.MessageDeltaEvent:
		if ev.Usage.InputTokens > 0 {
			s.usage.InputTokens = int(ev.Usage.InputTokens)
		}
		s.usage.OutputTokens = int(ev.Usage.OutputTokens)

	case sdk.MessageStopEvent:
		s.emit(&aisdk.StreamEvent{Kind: aisdk.EventUsage, Usage: s.usage, MessageID: s.messageID})
		s.done = true
	}
}

func (s *stream) emit(ev *aisdk.StreamEvent) {
	s.pending = append(s.pending, ev)
}

func (s *stream) Close() error {
	return s.raw.Close()
}
