// Package executor drives generation turns: it pulls model output,
// executes tool calls subject to the permission policy, and multiplexes
// protocol events over one ordered sink.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chatgate/src/agent"
	"chatgate/src/aisdk"
	"chatgate/src/content"
	"chatgate/src/permission"
	"chatgate/src/policy"
	"chatgate/src/store"
)

const defaultMaxTurns = 8

// PermissionDescriber produces the human-readable description attached
// to a permission request for the given tool call.
type PermissionDescriber func(call *aisdk.ToolCall) string

// Service runs turns with all necessary dependencies.
type Service struct {
	store             store.Store
	registry          *permission.Registry
	checker           *policy.Checker
	toolbox           *agent.Toolbox
	model             aisdk.ModelClient
	describe          PermissionDescriber
	logger            *slog.Logger
	systemPrompt      string
	maxTurns          int
	permissionTimeout time.Duration
}

// ServiceConfig holds configuration for creating a new Service.
type ServiceConfig struct {
	Store             store.Store
	Registry          *permission.Registry
	Checker           *policy.Checker
	Toolbox           *agent.Toolbox
	Model             aisdk.ModelClient
	Describe          PermissionDescriber
	SystemPrompt      string
	MaxTurns          int
	PermissionTimeout time.Duration
	Logger            *slog.Logger
}

// NewService creates a turn service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Registry == nil {
		return nil, ErrRegistryRequired
	}
	if cfg.Model == nil {
		return nil, ErrModelClientRequired
	}
	if cfg.Checker == nil {
		cfg.Checker = policy.NewChecker(policy.DefaultRules())
	}
	if cfg.Toolbox == nil {
		cfg.Toolbox = agent.NewToolbox()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.PermissionTimeout <= 0 {
		cfg.PermissionTimeout = permission.DefaultTimeout
	}
	return &Service{
		store:             cfg.Store,
		registry:          cfg.Registry,
		checker:           cfg.Checker,
		toolbox:           cfg.Toolbox,
		model:             cfg.Model,
		describe:          cfg.Describe,
		logger:            cfg.Logger,
		systemPrompt:      cfg.SystemPrompt,
		maxTurns:          cfg.MaxTurns,
		permissionTimeout: cfg.PermissionTimeout,
	}, nil
}

// TurnRequest describes one user turn.
type TurnRequest struct {
	SessionID     string
	Content       string
	Model         string
	SystemContext string
}

// RunTurn executes one full turn, emitting ordered protocol events to
// sink. Exactly one done event is emitted on every path. The returned
// error covers request validation only; runtime failures surface as
// error events so the session stays usable.
func (s *Service) RunTurn(ctx context.Context, req *TurnRequest, sink EventSink) error {
	if req.SessionID == "" {
		return ErrSessionIDRequired
	}
	if strings.TrimSpace(req.Content) == "" {
		return ErrContentRequired
	}

	emitter := NewEventEmitter(sink)
	defer emitter.Done()

	session, err := s.store.GetOrCreateSession(ctx, req.SessionID)
	if err != nil {
		emitter.Error("failed to load session: " + err.Error())
		return nil
	}

	if _, err := s.store.AddMessage(ctx, session.ID, store.Message{
		Role:    "user",
		Content: req.Content,
	}); err != nil {
		emitter.Error("failed to persist message: " + err.Error())
		return nil
	}

	history, err := s.loadHistory(ctx, session.ID)
	if err != nil {
		emitter.Error("failed to load history: " + err.Error())
		return nil
	}

	model := req.Model
	if model == "" {
		model = s.model.Model()
	}
	system := s.systemPrompt
	if req.SystemContext != "" {
		if system != "" {
			system += "\n\n"
		}
		system += req.SystemContext
	}

	var (
		transcript []content.Block
		usage      aisdk.Usage
		upstreamID string
		completed  bool
	)

	for turn := 0; turn < s.maxTurns; turn++ {
		emitter.Status("generating")

		stream, err := s.model.StreamChat(ctx, &aisdk.ChatRequest{
			Model:    model,
			System:   system,
			Messages: history,
			Tools:    s.toolbox.Specs(),
		})
		if err != nil {
			s.finishErrored(ctx, emitter, session.ID, transcript, usage, upstreamID, err)
			return nil
		}

		var agg aisdk.Aggregate
		drainErr := aisdk.Drain(stream, func(ev *aisdk.StreamEvent) error {
			if ev.Kind == aisdk.EventTextDelta {
				emitter.Text(ev.Text)
			}
			agg.AddEvent(ev)
			return nil
		})
		usage.Add(agg.Usage)
		if agg.MessageID != "" {
			upstreamID = agg.MessageID
		}
		if drainErr != nil {
			s.finishErrored(ctx, emitter, session.ID, transcript, usage, upstreamID, drainErr)
			return nil
		}

		var assistantBlocks []content.Block
		if agg.Text.Len() > 0 {
			assistantBlocks = append(assistantBlocks, content.NewTextBlock(agg.Text.String()))
		}
		for i := range agg.ToolCalls {
			call := &agg.ToolCalls[i]
			assistantBlocks = append(assistantBlocks, content.NewToolUseBlock(call.ID, call.Name, call.Input))
		}
		transcript = append(transcript, assistantBlocks...)
		if len(assistantBlocks) > 0 {
			history = append(history, aisdk.Message{Role: "assistant", Blocks: assistantBlocks})
		}

		if len(agg.ToolCalls) == 0 {
			completed = true
			break
		}

		var resultBlocks []content.Block
		for i := range agg.ToolCalls {
			call := &agg.ToolCalls[i]
			emitter.ToolUse(call)
			result, isError := s.runTool(ctx, emitter, session.ID, call)
			emitter.ToolResult(call.ID, result, isError)
			block := content.NewToolResultBlock(call.ID, result, isError)
			transcript = append(transcript, block)
			resultBlocks = append(resultBlocks, block)

			if ctx.Err() != nil {
				s.persistAssistant(session.ID, transcript, usage, upstreamID)
				return nil
			}
		}
		history = append(history, aisdk.Message{Role: "user", Blocks: resultBlocks})
	}

	if !completed {
		s.persistAssistant(session.ID, transcript, usage, upstreamID)
		emitter.Error(ErrMaxTurnsExceeded.Error())
		return nil
	}

	s.persistAssistant(session.ID, transcript, usage, upstreamID)
	emitter.Result(usage, aisdk.EstimateCost(model, usage))
	return nil
}

// runTool applies the permission policy, waits for a decision when the
// call is gated, and executes allowed calls. Failures never abort the
// turn: they come back as error-flagged results the model can read.
func (s *Service) runTool(ctx context.Context, emitter *EventEmitter, sessionID string, call *aisdk.ToolCall) (string, bool) {
	check := s.checker.Check(call.Name)
	if !check.Allowed && !check.Gated {
		reason := check.Reason
		if reason == "" {
			reason = "permission denied by policy"
		}
		return reason, true
	}

	if check.Gated {
		req, waiter := s.registry.Register(sessionID, call.Name, call.Input)
		emitter.PermissionRequest(req, s.describeCall(call))

		decision := waiter.Await(ctx, s.permissionTimeout)
		emitter.PermissionResolved(req.ID, decision)

		if !decision.Allowed() {
			reason := decision.Message
			if reason == "" {
				reason = "permission denied"
			}
			s.logger.Info("gated tool call denied", "tool", call.Name, "request_id", req.ID, "reason", reason)
			return reason, true
		}
	}

	resp, err := s.toolbox.ExecuteTool(ctx, call)
	if err != nil {
		s.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return err.Error(), true
	}
	return string(resp.Content), resp.IsError
}

func (s *Service) describeCall(call *aisdk.ToolCall) string {
	if s.describe == nil {
		return ""
	}
	return s.describe(call)
}

// finishErrored handles transport-level failures: persist what we have,
// report the failure unless the client simply went away.
func (s *Service) finishErrored(ctx context.Context, emitter *EventEmitter, sessionID string, transcript []content.Block, usage aisdk.Usage, upstreamID string, cause error) {
	s.persistAssistant(sessionID, transcript, usage, upstreamID)
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		s.logger.Info("turn aborted", "session_id", sessionID)
		return
	}
	s.logger.Error("model stream failed", "session_id", sessionID, "error", cause)
	emitter.Error(cause.Error())
}

// persistAssistant appends the assembled assistant message and records
// the provider's conversation id when one was reported. Best effort:
// storage failures are logged, never surfaced mid-teardown.
func (s *Service) persistAssistant(sessionID string, transcript []content.Block, usage aisdk.Usage, upstreamID string) {
	if len(transcript) == 0 {
		return
	}
	usageJSON, _ := json.Marshal(usage)
	// Detached context: persistence must survive client aborts.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.AddMessage(ctx, sessionID, store.Message{
		Role:    "assistant",
		Content: content.Encode(transcript),
		Usage:   string(usageJSON),
	}); err != nil {
		s.logger.Error("failed to persist assistant message", "session_id", sessionID, "error", err)
	}
	if upstreamID != "" {
		if err := s.store.SetUpstreamConversationID(ctx, sessionID, upstreamID); err != nil {
			s.logger.Error("failed to record upstream conversation id", "session_id", sessionID, "error", err)
		}
	}
}

// loadHistory rebuilds the model-facing conversation from persisted
// messages. Assistant tool_use blocks and their results keep their
// original role split so the provider sees a valid exchange.
func (s *Service) loadHistory(ctx context.Context, sessionID string) ([]aisdk.Message, error) {
	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]aisdk.Message, 0, len(messages))
	for _, m := range messages {
		blocks := content.Decode(m.Content)
		if m.Role != "assistant" {
			history = append(history, aisdk.Message{Role: m.Role, Blocks: blocks})
			continue
		}
		// One persisted assistant message may interleave tool results
		// that the wire protocol requires in user-role messages. Split
		// on role changes so each result run follows its own tool uses.
		var run []content.Block
		runRole := "assistant"
		flush := func() {
			if len(run) > 0 {
				history = append(history, aisdk.Message{Role: runRole, Blocks: run})
				run = nil
			}
		}
		for _, b := range blocks {
			role := "assistant"
			if b.Type == content.BlockTypeToolResult {
				role = "user"
			}
			if role != runRole {
				flush()
				runRole = role
			}
			run = append(run, b)
		}
		flush()
	}
	return history, nil
}
