package executor

import (
	"encoding/json"
	"fmt"

	"chatgate/src/aisdk"
	"chatgate/src/permission"
)

// EventType identifies one kind of turn protocol event.
type EventType string

const (
	EventText               EventType = "text"
	EventToolUse            EventType = "tool_use"
	EventToolResult         EventType = "tool_result"
	EventPermissionRequest  EventType = "permission_request"
	EventPermissionResolved EventType = "permission_resolved"
	EventStatus             EventType = "status"
	EventResult             EventType = "result"
	EventError              EventType = "error"
	EventDone               EventType = "done"
)

// Event is one entry of the ordered turn output channel. Data holds the
// type-specific payload; nil for done.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ToolUsePayload announces a model-requested tool call.
type ToolUsePayload struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultPayload carries the outcome of a tool call.
type ToolResultPayload struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// PermissionRequestPayload announces a gated tool call awaiting an
// out-of-band decision.
type PermissionRequestPayload struct {
	PermissionRequestID string          `json:"permissionRequestId"`
	ToolName            string          `json:"toolName"`
	ToolInput           json.RawMessage `json:"toolInput"`
	Description         string          `json:"description,omitempty"`
}

// PermissionResolvedPayload reports the decision applied to a request so
// clients can close their prompt.
type PermissionResolvedPayload struct {
	PermissionRequestID string              `json:"permissionRequestId"`
	Behavior            permission.Behavior `json:"behavior"`
	Message             string              `json:"message,omitempty"`
}

// ResultPayload is the end-of-turn metadata.
type ResultPayload struct {
	Usage aisdk.Usage        `json:"usage"`
	Cost  aisdk.CostEstimate `json:"cost"`
}

// ErrorPayload reports a turn-level failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EventSink is the interface for handling turn events.
type EventSink interface {
	// Send sends an event to the sink.
	Send(event Event) error

	// Close closes the event sink.
	Close() error
}

// ChannelEventSink implements EventSink backed by a Go channel.
type ChannelEventSink struct {
	events chan Event
	done   chan struct{}
}

// NewChannelEventSink creates a channel-based event sink.
func NewChannelEventSink(bufferSize int) *ChannelEventSink {
	return &ChannelEventSink{
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelEventSink) Events() <-chan Event {
	return s.events
}

// Send sends an event to the sink.
func (s *ChannelEventSink) Send(event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return fmt.Errorf("event sink is closed")
	}
}

// Close closes the event sink. Callers must not Send afterwards.
func (s *ChannelEventSink) Close() error {
	close(s.done)
	close(s.events)
	return nil
}

// EventEmitter provides typed helpers over an EventSink. Send failures
// are swallowed: a slow or closed sink must not corrupt the turn.
type EventEmitter struct {
	sink EventSink
}

// NewEventEmitter wraps a sink.
func NewEventEmitter(sink EventSink) *EventEmitter {
	return &EventEmitter{sink: sink}
}

func (e *EventEmitter) emit(t EventType, data any) {
	if e == nil || e.sink == nil {
		return
	}
	_ = e.sink.Send(Event{Type: t, Data: data})
}

func (e *EventEmitter) Text(delta string) {
	e.emit(EventText, delta)
}

func (e *EventEmitter) ToolUse(call *aisdk.ToolCall) {
	e.emit(EventToolUse, ToolUsePayload{ID: call.ID, Name: call.Name, Input: call.Input})
}

func (e *EventEmitter) ToolResult(toolUseID, content string, isError bool) {
	e.emit(EventToolResult, ToolResultPayload{ToolUseID: toolUseID, Content: content, IsError: isError})
}

func (e *EventEmitter) PermissionRequest(req *permission.Request, description string) {
	e.emit(EventPermissionRequest, PermissionRequestPayload{
		PermissionRequestID: req.ID,
		ToolName:            req.ToolName,
		ToolInput:           req.ToolInput,
		Description:         description,
	})
}

func (e *EventEmitter) PermissionResolved(id string, decision permission.Decision) {
	e.emit(EventPermissionResolved, PermissionResolvedPayload{
		PermissionRequestID: id,
		Behavior:            decision.Behavior,
		Message:             decision.Message,
	})
}

func (e *EventEmitter) Status(message string) {
	e.emit(EventStatus, message)
}

func (e *EventEmitter) Result(usage aisdk.Usage, cost aisdk.CostEstimate) {
	e.emit(EventResult, ResultPayload{Usage: usage, Cost: cost})
}

func (e *EventEmitter) Error(message string) {
	e.emit(EventError, ErrorPayload{Message: message})
}

func (e *EventEmitter) Done() {
	e.emit(EventDone, nil)
}
