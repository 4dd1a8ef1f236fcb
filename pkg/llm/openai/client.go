package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/user/toolchat/internal/types"
	"github.com/user/toolchat/pkg/llm"
)

const providerName = "openai"

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config *llm.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []requestMessage `json:"messages"`
	Tools       []toolDef        `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float32         `json:"temperature,omitempty"`
}

// requestMessage is the OpenAI message format for requests.
type requestMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// toolCall is a function call as it appears on the wire. Arguments is a
// JSON document encoded as a string.
type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	Choices []choice      `json:"choices"`
	Usage   responseUsage `json:"usage"`
}

// choice represents a single completion choice.
type choice struct {
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// responseMessage is the OpenAI message format in responses.
type responseMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

// responseUsage is the OpenAI token usage format.
type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Infer sends a chat completion request and returns the model's turn.
func (c *Client) Infer(ctx context.Context, history []llm.Turn, tools []llm.ToolSpec) (*llm.Message, error) {
	reqBody := chatRequest{
		Model:    c.config.Model,
		Messages: c.toRequestMessages(history),
	}

	for _, t := range tools {
		reqBody.Tools = append(reqBody.Tools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	if c.config.MaxTokens > 0 {
		reqBody.MaxTokens = c.config.MaxTokens
	}

	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("marshaling request: %w", err))
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(resp.StatusCode, fmt.Errorf("API error: %s", strings.TrimSpace(string(respBody))))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, c.fail(0, fmt.Errorf("parsing response: %w", err))
	}

	if len(chatResp.Choices) == 0 {
		return nil, c.fail(0, errors.New("no choices in response"))
	}

	choice := chatResp.Choices[0]
	msg := &llm.Message{
		StopReason: choice.FinishReason,
		Usage: llm.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, llm.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = string(types.NewToolUseID())
		}
		msg.Content = append(msg.Content, llm.ToolUseBlock{
			ID:    id,
			Name:  tc.Function.Name,
			Input: normalizeArguments(tc.Function.Arguments),
		})
	}
	return msg, nil
}

func (c *Client) fail(status int, err error) error {
	return &llm.InferenceError{Provider: providerName, StatusCode: status, Err: err}
}

// toRequestMessages flattens block-structured turns into the chat
// completions layout: tool results become "tool" messages and tool uses
// become tool_calls on the assistant message.
func (c *Client) toRequestMessages(history []llm.Turn) []requestMessage {
	var out []requestMessage
	if c.config.SystemPrompt != "" {
		out = append(out, requestMessage{Role: "system", Content: c.config.SystemPrompt})
	}

	for _, turn := range history {
		switch turn.Role {
		case llm.RoleAssistant:
			rm := requestMessage{Role: "assistant"}
			var texts []string
			for _, b := range turn.Content {
				switch b := b.(type) {
				case llm.TextBlock:
					texts = append(texts, b.Text)
				case llm.ToolUseBlock:
					args := string(b.Input)
					if args == "" {
						args = "{}"
					}
					rm.ToolCalls = append(rm.ToolCalls, toolCall{
						ID:       b.ID,
						Type:     "function",
						Function: functionCall{Name: b.Name, Arguments: args},
					})
				}
			}
			rm.Content = strings.Join(texts, "\n")
			out = append(out, rm)
		default:
			for _, b := range turn.Content {
				switch b := b.(type) {
				case llm.TextBlock:
					out = append(out, requestMessage{Role: "user", Content: b.Text})
				case llm.ToolResultBlock:
					out = append(out, requestMessage{Role: "tool", Content: b.Content, ToolCallID: b.ToolUseID})
				}
			}
		}
	}
	return out
}

// normalizeArguments returns the call arguments as a JSON document. Models
// occasionally emit truncated or loosely quoted JSON; that is repaired when
// possible, and otherwise passed on as a JSON string so that schema
// validation rejects it with a readable message.
func normalizeArguments(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	if repaired, err := jsonrepair.JSONRepair(args); err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}
