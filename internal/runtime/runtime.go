package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	ctxengine "github.com/user/toolchat/internal/context"
	"github.com/user/toolchat/pkg/llm"
)

// Input supplies user utterances, one line at a time.
type Input interface {
	// ReadLine blocks until the user enters a line. It returns io.EOF once
	// the input is closed or interrupted.
	ReadLine() (string, error)
}

// Output shows the model's side of the conversation to the user.
type Output interface {
	AssistantText(text string)
	ToolNotice(name string)
}

// Options tune a Runtime. The zero value is usable.
type Options struct {
	// MaxToolRounds bounds consecutive tool rounds after one user line.
	// Zero means unbounded.
	MaxToolRounds int
	// Budget, when set, is used to warn when the history outgrows the
	// model's context window.
	Budget *ctxengine.Budget
	Logger *slog.Logger
}

type state int

const (
	awaitingUserInput state = iota
	runningInference
	processingToolResults
	done
)

func (s state) String() string {
	switch s {
	case awaitingUserInput:
		return "awaiting_user_input"
	case runningInference:
		return "running_inference"
	case processingToolResults:
		return "processing_tool_results"
	case done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Runtime implements the conversation loop: it alternates between user
// input, inference and tool execution until the input is closed.
type Runtime struct {
	provider   llm.Provider
	registry   *Registry
	dispatcher *Dispatcher
	in         Input
	out        Output
	budget     *ctxengine.Budget
	logger     *slog.Logger
	maxRounds  int

	history      []llm.Turn
	budgetWarned bool
}

// New creates a Runtime with the given dependencies.
func New(provider llm.Provider, registry *Registry, in Input, out Output, opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		provider:   provider,
		registry:   registry,
		dispatcher: NewDispatcher(registry, logger),
		in:         in,
		out:        out,
		budget:     opts.Budget,
		logger:     logger,
		maxRounds:  opts.MaxToolRounds,
	}
}

// History returns a copy of the conversation so far.
func (rt *Runtime) History() []llm.Turn {
	return slices.Clone(rt.history)
}

// Run drives the conversation until the input reaches EOF, the context is
// cancelled, or an inference call fails. EOF and cancellation are clean
// exits and return nil. An inference failure ends the run and is returned.
func (rt *Runtime) Run(ctx context.Context) error {
	st := awaitingUserInput
	var results []llm.ContentBlock
	rounds := 0

	for st != done {
		switch st {
		case awaitingUserInput:
			if ctx.Err() != nil {
				st = done
				continue
			}
			line, err := rt.in.ReadLine()
			if errors.Is(err, io.EOF) {
				st = done
				continue
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			rt.appendTurn(llm.NewUserText(line))
			rounds = 0
			st = runningInference

		case runningInference:
			msg, err := rt.infer(ctx)
			if err != nil {
				if ctx.Err() != nil {
					rt.logger.Debug("inference cancelled", "error", err)
					return nil
				}
				return fmt.Errorf("LLM call: %w", err)
			}
			// The assistant turn goes in before any results so each
			// tool_use is immediately followed by its answer.
			if len(msg.Content) > 0 {
				rt.appendTurn(llm.Turn{Role: llm.RoleAssistant, Content: msg.Content})
			}
			// The limit is checked before any tool of the next round runs.
			if uses := llm.ToolUses(msg.Content); len(uses) > 0 && rt.maxRounds > 0 && rounds >= rt.maxRounds {
				rt.logger.Warn("tool round limit reached", "limit", rt.maxRounds, "pending_tools", len(uses))
				return fmt.Errorf("max tool rounds (%d) exceeded", rt.maxRounds)
			}
			results = rt.handleBlocks(ctx, msg.Content)
			if len(results) == 0 {
				st = awaitingUserInput
			} else {
				st = processingToolResults
			}
			rt.logger.Debug("model turn handled", "next", st, "tool_results", len(results))

		case processingToolResults:
			rt.appendTurn(llm.Turn{Role: llm.RoleUser, Content: results})
			results = nil
			rounds++
			st = runningInference
		}
	}
	return nil
}

func (rt *Runtime) appendTurn(turn llm.Turn) {
	rt.history = append(rt.history, turn)
}

func (rt *Runtime) infer(ctx context.Context) (*llm.Message, error) {
	specs := rt.registry.Specs()
	if rt.budget != nil {
		tokens := rt.budget.Count(rt.history, specs)
		if rt.budget.Exceeded(tokens) && !rt.budgetWarned {
			rt.logger.Warn("conversation exceeds context budget", "estimated_tokens", tokens, "limit", rt.budget.Limit())
			rt.budgetWarned = true
		} else {
			rt.logger.Debug("prompt size", "estimated_tokens", tokens, "turns", len(rt.history))
		}
	}

	// Appends by the provider must not land in rt.history's backing array.
	msg, err := rt.provider.Infer(ctx, slices.Clip(rt.history), specs)
	if err != nil {
		return nil, err
	}
	rt.logger.Debug("inference complete",
		"stop_reason", msg.StopReason,
		"blocks", len(msg.Content),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)
	return msg, nil
}

// handleBlocks shows text, runs requested tools in order, and returns one
// tool_result per tool_use, in the same order.
func (rt *Runtime) handleBlocks(ctx context.Context, blocks []llm.ContentBlock) []llm.ContentBlock {
	var results []llm.ContentBlock
	for _, b := range blocks {
		switch b := b.(type) {
		case llm.TextBlock:
			rt.out.AssistantText(b.Text)
		case llm.ToolUseBlock:
			rt.out.ToolNotice(b.Name)
			outcome := rt.dispatcher.Invoke(ctx, b.Name, b.Input)
			results = append(results, llm.ToolResultBlock{
				ToolUseID: b.ID,
				Content:   outcome.Content,
				IsError:   outcome.IsError,
			})
		case llm.ToolResultBlock:
			rt.logger.Warn("ignoring tool_result from model", "tool_use_id", b.ToolUseID)
		}
	}
	return results
}
