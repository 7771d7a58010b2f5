package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/process"

	"chatgate/src/content"
	"chatgate/src/executor"
	"chatgate/src/permission"
)

type chatRequest struct {
	SessionID     string `json:"session_id"`
	Content       string `json:"content"`
	Model         string `json:"model,omitempty"`
	SystemContext string `json:"system_context,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	sink, err := newSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sink.Close()

	err = s.service.RunTurn(r.Context(), &executor.TurnRequest{
		SessionID:     req.SessionID,
		Content:       req.Content,
		Model:         req.Model,
		SystemContext: req.SystemContext,
	}, sink)
	if err != nil {
		// Validation failure after headers went out: report in-band.
		_ = sink.Send(executor.Event{Type: executor.EventError, Data: executor.ErrorPayload{Message: err.Error()}})
		_ = sink.Send(executor.Event{Type: executor.EventDone})
	}
}

type messageView struct {
	ID        string                   `json:"id"`
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	ToolCalls []content.ToolCallRecord `json:"tool_calls,omitempty"`
	Usage     json.RawMessage          `json:"usage,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	messages, err := s.store.GetMessages(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		blocks := content.Decode(m.Content)
		view := messageView{
			ID:        m.ID,
			Role:      m.Role,
			Content:   content.PlainText(blocks),
			ToolCalls: content.PairToolCalls(blocks),
			CreatedAt: m.CreatedAt,
		}
		if m.Usage != "" {
			view.Usage = json.RawMessage(m.Usage)
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": views})
}

type decisionRequest struct {
	PermissionRequestID string          `json:"permissionRequestId"`
	Decision            json.RawMessage `json:"decision"`
}

// parseDecision accepts both the shorthand string form and the
// structured object form.
func parseDecision(raw json.RawMessage) (permission.Decision, error) {
	if len(raw) == 0 {
		return permission.Decision{}, fmt.Errorf("decision is required")
	}

	var shorthand string
	if err := json.Unmarshal(raw, &shorthand); err == nil {
		switch shorthand {
		case "allow":
			return permission.Allow(), nil
		case "deny":
			return permission.Deny(""), nil
		default:
			return permission.Decision{}, fmt.Errorf("decision must be \"allow\" or \"deny\"")
		}
	}

	var structured struct {
		Behavior string `json:"behavior"`
		Message  string `json:"message,omitempty"`
	}
	if err := json.Unmarshal(raw, &structured); err != nil {
		return permission.Decision{}, fmt.Errorf("malformed decision")
	}
	switch permission.Behavior(structured.Behavior) {
	case permission.BehaviorAllow:
		return permission.Decision{Behavior: permission.BehaviorAllow, Message: structured.Message}, nil
	case permission.BehaviorDeny:
		return permission.Decision{Behavior: permission.BehaviorDeny, Message: structured.Message}, nil
	default:
		return permission.Decision{}, fmt.Errorf("behavior must be \"allow\" or \"deny\"")
	}
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PermissionRequestID == "" {
		writeError(w, http.StatusBadRequest, "permissionRequestId is required")
		return
	}
	decision, err := parseDecision(req.Decision)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.registry.Resolve(req.PermissionRequestID, decision) {
		writeError(w, http.StatusNotFound, "permission request not found or already resolved")
		return
	}

	s.logger.Info("permission decision applied",
		"request_id", req.PermissionRequestID,
		"behavior", decision.Behavior,
	)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resolved": true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.CreateSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session.Summarize())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existed, err := s.store.DeleteSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.registry.DropSession(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

var startTime = time.Now()

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":              "ok",
		"uptime_seconds":      int(time.Since(startTime).Seconds()),
		"pending_permissions": s.registry.PendingCount(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			health["memory_rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			health["cpu_percent"] = cpu
		}
	}
	writeJSON(w, http.StatusOK, health)
}
