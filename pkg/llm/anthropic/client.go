// Package anthropic adapts the Anthropic Messages API to llm.Provider.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/user/toolchat/pkg/llm"
)

const (
	providerName     = "anthropic"
	defaultMaxTokens = 1024
)

// Client implements llm.Provider on top of the official SDK.
type Client struct {
	config *llm.Config
	client anthropic.Client
}

// New creates a client. When config.APIKey is empty the SDK falls back to
// ANTHROPIC_API_KEY. SDK-level retries are disabled: a failed call is
// reported to the caller as is.
func New(config *llm.Config, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if config.APIKey != "" {
		base = append(base, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		base = append(base, option.WithBaseURL(config.BaseURL))
	}
	return &Client{
		config: config,
		client: anthropic.NewClient(append(base, opts...)...),
	}
}

// Infer sends one Messages request and converts the reply into blocks.
func (c *Client) Infer(ctx context.Context, history []llm.Turn, tools []llm.ToolSpec) (*llm.Message, error) {
	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(maxTokens),
		Messages:  toMessageParams(history),
	}
	if c.config.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.config.SystemPrompt}}
	}
	if c.config.Temperature != 0 {
		params.Temperature = anthropic.Float(float64(c.config.Temperature))
	}
	if len(tools) > 0 {
		toolParams, err := toToolParams(tools)
		if err != nil {
			return nil, &llm.InferenceError{Provider: providerName, Err: err}
		}
		params.Tools = toolParams
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		infErr := &llm.InferenceError{Provider: providerName, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			infErr.StatusCode = apiErr.StatusCode
		}
		return nil, infErr
	}

	msg := &llm.Message{
		StopReason: string(resp.StopReason),
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content = append(msg.Content, llm.TextBlock{Text: block.Text})
		case "tool_use":
			input := append(json.RawMessage(nil), block.Input...)
			msg.Content = append(msg.Content, llm.ToolUseBlock{ID: block.ID, Name: block.Name, Input: input})
		}
	}
	return msg, nil
}

func toMessageParams(history []llm.Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, turn := range history {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Content))
		for _, b := range turn.Content {
			switch b := b.(type) {
			case llm.TextBlock:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case llm.ToolUseBlock:
				input := b.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, input, b.Name))
			case llm.ToolResultBlock:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		if turn.Role == llm.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

// toInputSchema splits a tool's JSON Schema into the typed fields of the
// Messages API and forwards everything else (additionalProperties and
// friends) unchanged.
func toInputSchema(raw json.RawMessage) (anthropic.ToolInputSchemaParam, error) {
	var schema map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &schema); err != nil {
			return anthropic.ToolInputSchemaParam{}, err
		}
	}

	param := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
	if props, ok := schema["properties"].(map[string]any); ok {
		param.Properties = props
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				param.Required = append(param.Required, name)
			}
		}
	}

	delete(schema, "type")
	delete(schema, "properties")
	delete(schema, "required")
	if len(schema) > 0 {
		param.ExtraFields = schema
	}
	return param, nil
}

func toToolParams(tools []llm.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema, err := toInputSchema(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("decode input schema for tool %s: %w", t.Name, err)
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out, nil
}
