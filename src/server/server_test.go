package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/src/agent"
	"chatgate/src/aisdk"
	"chatgate/src/executor"
	"chatgate/src/permission"
	"chatgate/src/policy"
	"chatgate/src/store"
)

type scriptedStream struct {
	events []*aisdk.StreamEvent
	pos    int
}

func (s *scriptedStream) Recv() (*aisdk.StreamEvent, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

type scriptedClient struct {
	turns [][]*aisdk.StreamEvent
	calls int
}

func (c *scriptedClient) StreamChat(ctx context.Context, req *aisdk.ChatRequest) (aisdk.Stream, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.turns) {
		idx = len(c.turns) - 1
	}
	return &scriptedStream{events: c.turns[idx]}, nil
}

func (c *scriptedClient) Model() string { return "claude-sonnet-4-20250514" }

type stubTool struct {
	name    string
	content string
}

func (t *stubTool) GetName() string                   { return t.name }
func (t *stubTool) GetDescription() string            { return "stub" }
func (t *stubTool) GetParameters() *jsonschema.Schema { return nil }
func (t *stubTool) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	return &aisdk.ToolResponse{Content: []byte(t.content)}, nil
}

type testEnv struct {
	server   *Server
	store    store.Store
	registry *permission.Registry
	handler  http.Handler
}

func newTestEnv(t *testing.T, client aisdk.ModelClient, tools ...agent.Tool) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	registry := permission.NewRegistry(nil)
	tb := agent.NewToolbox()
	for _, tool := range tools {
		require.NoError(t, tb.RegisterTool(tool))
	}
	if client == nil {
		client = &scriptedClient{turns: [][]*aisdk.StreamEvent{{
			{Kind: aisdk.EventTextDelta, Text: "hello"},
		}}}
	}
	svc, err := executor.NewService(executor.ServiceConfig{
		Store:             st,
		Registry:          registry,
		Checker:           policy.NewChecker(policy.DefaultRules()),
		Toolbox:           tb,
		Model:             client,
		PermissionTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	srv := New(Config{Store: st, Registry: registry, Service: svc})
	return &testEnv{server: srv, store: st, registry: registry, handler: srv.Router()}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func parseSSE(t *testing.T, body string) []executor.Event {
	t.Helper()
	var events []executor.Event
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev executor.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []executor.Event) []executor.EventType {
	out := make([]executor.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestChatRequiresFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/chat", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/chat", map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Ungated tool turn over the wire: tool_use, tool_result, text, result,
// done and no permission_request frames.
func TestChatStreamUngatedTool(t *testing.T) {
	client := &scriptedClient{turns: [][]*aisdk.StreamEvent{
		{
			{Kind: aisdk.EventToolUse, ToolCall: &aisdk.ToolCall{ID: "t1", Name: "get_current_time", Input: json.RawMessage(`{}`)}},
			{Kind: aisdk.EventUsage, Usage: aisdk.Usage{InputTokens: 5, OutputTokens: 2}},
		},
		{
			{Kind: aisdk.EventTextDelta, Text: "It is noon."},
			{Kind: aisdk.EventUsage, Usage: aisdk.Usage{InputTokens: 9, OutputTokens: 4}},
		},
	}}
	env := newTestEnv(t, client, &stubTool{name: "get_current_time", content: "noon"})

	rec := env.do(http.MethodPost, "/api/chat", map[string]string{"session_id": "s1", "content": "what time is it"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	var filtered []executor.EventType
	for _, et := range eventTypes(events) {
		if et != executor.EventStatus {
			filtered = append(filtered, et)
		}
	}
	assert.Equal(t, []executor.EventType{
		executor.EventToolUse,
		executor.EventToolResult,
		executor.EventText,
		executor.EventResult,
		executor.EventDone,
	}, filtered)
}

// Gated turn end-to-end across two real HTTP requests: the chat stream
// suspends on permission_request until the decision endpoint resolves.
func TestChatStreamGatedDecision(t *testing.T) {
	client := &scriptedClient{turns: [][]*aisdk.StreamEvent{
		{
			{Kind: aisdk.EventToolUse, ToolCall: &aisdk.ToolCall{ID: "t1", Name: "write_file", Input: json.RawMessage(`{"path":"a.txt"}`)}},
		},
		{
			{Kind: aisdk.EventTextDelta, Text: "The write was not permitted."},
		},
	}}
	env := newTestEnv(t, client, &stubTool{name: "write_file", content: "written"})

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"session_id": "s1", "content": "write a.txt"})
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []executor.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev executor.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)

		if ev.Type == executor.EventPermissionRequest {
			data, _ := json.Marshal(ev.Data)
			var payload executor.PermissionRequestPayload
			require.NoError(t, json.Unmarshal(data, &payload))
			assert.Equal(t, "write_file", payload.ToolName)

			decision, _ := json.Marshal(map[string]any{
				"permissionRequestId": payload.PermissionRequestID,
				"decision":            map[string]string{"behavior": "deny", "message": "nope"},
			})
			dresp, err := http.Post(ts.URL+"/api/permissions/decision", "application/json", bytes.NewReader(decision))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, dresp.StatusCode)
			dresp.Body.Close()
		}
		if ev.Type == executor.EventDone {
			break
		}
	}

	var sawResult bool
	for _, ev := range events {
		if ev.Type == executor.EventToolResult {
			data, _ := json.Marshal(ev.Data)
			var payload executor.ToolResultPayload
			require.NoError(t, json.Unmarshal(data, &payload))
			assert.True(t, payload.IsError)
			assert.Equal(t, "nope", payload.Content)
			sawResult = true
		}
	}
	assert.True(t, sawResult)
	assert.Equal(t, executor.EventDone, events[len(events)-1].Type)
}

// Unknown decision id: 404 and nothing in the registry changes.
func TestDecisionUnknownID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/permissions/decision", map[string]any{
		"permissionRequestId": "unknown-id",
		"decision":            "allow",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, env.registry.PendingCount())
}

func TestDecisionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/permissions/decision", map[string]any{"decision": "allow"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/permissions/decision", map[string]any{
		"permissionRequestId": "x", "decision": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/permissions/decision", map[string]any{
		"permissionRequestId": "x", "decision": map[string]string{"behavior": "shrug"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecisionShorthandAllow(t *testing.T) {
	env := newTestEnv(t, nil)
	req, _ := env.registry.Register("s1", "write_file", json.RawMessage(`{}`))

	rec := env.do(http.MethodPost, "/api/permissions/decision", map[string]any{
		"permissionRequestId": req.ID,
		"decision":            "allow",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out["success"])
	assert.True(t, out["resolved"])

	// Duplicate resolution reports 404, never double-applies.
	rec = env.do(http.MethodPost, "/api/permissions/decision", map[string]any{
		"permissionRequestId": req.ID,
		"decision":            "deny",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "new session", created.Title)

	rec = env.do(http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Sessions []store.Summary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Sessions, 1)

	rec = env.do(http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMessagesRequiresSessionID(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/chat/messages", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesUnknownSessionIsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/api/chat/messages?session_id=ghost", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Messages []messageView `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Messages)
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out["status"])
}

// Cleanup with zero max age removes freshly active sessions from the
// listing and retires their pending permissions.
func TestJanitorSweep(t *testing.T) {
	env := newTestEnv(t, nil)

	session, err := env.store.CreateSession(context.Background())
	require.NoError(t, err)
	_, err = env.store.AddMessage(context.Background(), session.ID, store.Message{Role: "user", Content: "hi"})
	require.NoError(t, err)
	env.registry.Register(session.ID, "write_file", json.RawMessage(`{}`))

	janitor := NewJanitor(env.store, env.registry, time.Hour, 0, nil)
	janitor.sweep(context.Background())

	summaries, err := env.store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Zero(t, env.registry.PendingCount())
}
