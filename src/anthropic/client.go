// Package anthropic implements aisdk.ModelClient on top of the Claude
// Messages API via github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"chatgate/src/aisdk"
	"chatgate/src/content"
)

// DefaultModel matches the fallback the upstream API expects when the
// client does not pick one.
const DefaultModel = "claude-sonnet-4-20250514"

const defaultMaxTokens = 4096

// Client is an Anthropic-backed model client.
type Client struct {
	client *sdk.Client
	model  string
}

var _ aisdk.ModelClient = (*Client)(nil)

// Config holds construction parameters for the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New builds a client. The API key is required; base URL and model fall
// back to the Anthropic defaults.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := sdk.NewClient(opts...)
	return &Client{client: &client, model: model}, nil
}

// Model reports the default model identifier.
func (c *Client) Model() string {
	return c.model
}

// StreamChat starts one streaming Messages call and adapts it to the
// aisdk stream interface.
func (c *Client) StreamChat(ctx context.Context, req *aisdk.ChatRequest) (aisdk.Stream, error) {
	params, err := c.encodeRequest(req)
	if err != nil {
		return nil, err
	}
	raw := c.client.Messages.NewStreaming(ctx, *params)
	if err := raw.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: failed to start stream: %w", err)
	}
	return newStream(raw), nil
}

func (c *Client) encodeRequest(req *aisdk.ChatRequest) (*sdk.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return &params, nil
}

func encodeMessages(msgs []aisdk.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case content.BlockTypeText:
				if b.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(b.Text))
				}
			case content.BlockTypeToolUse:
				var input any
				if len(b.Input) > 0 {
					if err := json.Unmarshal(b.Input, &input); err != nil {
						return nil, fmt.Errorf("anthropic: bad tool_use input for %q: %w", b.ID, err)
					}
				} else {
					input = map[string]any{}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(b.ID, input, b.Name))
			case content.BlockTypeToolResult:
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case "user":
			out = append(out, sdk.NewUserMessage(blocks...))
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("anthropic: at least one message is required")
	}
	return out, nil
}

func encodeTools(specs []aisdk.ToolSpec) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, errors.New("anthropic: tool spec missing name")
		}
		schema, err := toolInputSchema(spec)
		if err != nil {
			return nil, err
		}
		tool := sdk.ToolUnionParamOfTool(schema, spec.Name)
		if spec.Description != "" {
			tool.OfTool.Description = sdk.String(spec.Description)
		}
		out = append(out, tool)
	}
	return out, nil
}

// toolInputSchema converts a jsonschema-go schema into the plain
// properties/required shape the Messages API expects.
func toolInputSchema(spec aisdk.ToolSpec) (sdk.ToolInputSchemaParam, error) {
	out := sdk.ToolInputSchemaParam{}
	if spec.Parameters == nil {
		return out, nil
	}
	data, err := json.Marshal(spec.Parameters)
	if err != nil {
		return out, fmt.Errorf("anthropic: tool %q schema marshal: %w", spec.Name, err)
	}
	var decoded struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return out, fmt.Errorf("anthropic: tool %q schema decode: %w", spec.Name, err)
	}
	out.Properties = decoded.Properties
	if len(decoded.Required) > 0 {
		out.Required = decoded.Required
	}
	return out, nil
}
