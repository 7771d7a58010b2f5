package aisdk

import (
	"errors"
	"io"
	"strings"
)

// EventKind classifies one unit of streaming model output.
type EventKind string

const (
	// EventTextDelta carries an incremental piece of assistant text.
	EventTextDelta EventKind = "text_delta"
	// EventToolUse carries a complete tool call request.
	EventToolUse EventKind = "tool_use"
	// EventUsage carries a token usage report.
	EventUsage EventKind = "usage"
)

// StreamEvent is one unit read from a model stream. Usage events carry
// the provider's message id when the transport reports one.
type StreamEvent struct {
	Kind      EventKind
	Text      string
	ToolCall  *ToolCall
	Usage     Usage
	MessageID string
}

// Stream reads model output incrementally. Recv returns io.EOF when the
// generation is complete.
type Stream interface {
	Recv() (*StreamEvent, error)
	Close() error
}

// StreamCallback is invoked for each event while draining a stream.
type StreamCallback func(ev *StreamEvent) error

// Drain reads the stream to completion, forwarding each event.
func Drain(stream Stream, callback StreamCallback) error {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ev == nil {
			return nil
		}
		if err := callback(ev); err != nil {
			return err
		}
	}
}

// Aggregate collects a whole stream into assembled text, tool calls and
// usage totals.
type Aggregate struct {
	Text      strings.Builder
	ToolCalls []ToolCall
	Usage     Usage
	MessageID string
}

// AddEvent folds one stream event into the aggregate.
func (a *Aggregate) AddEvent(ev *StreamEvent) {
	switch ev.Kind {
	case EventTextDelta:
		a.Text.WriteString(ev.Text)
	case EventToolUse:
		if ev.ToolCall != nil {
			a.ToolCalls = append(a.ToolCalls, *ev.ToolCall)
		}
	case EventUsage:
		a.Usage.Add(ev.Usage)
		if ev.MessageID != "" {
			a.MessageID = ev.MessageID
		}
	}
}
