package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Outcome is the text fed back to the model for one tool invocation.
type Outcome struct {
	Content string
	IsError bool
}

// Dispatcher resolves tool names and runs tools. Failures never leave
// Invoke as errors: they become error outcomes the model can read.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over registry. A nil logger uses
// slog.Default().
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Invoke runs the named tool with args and always returns an outcome.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) Outcome {
	tool, ok := d.registry.Lookup(name)
	if !ok {
		err := &ToolNotFoundError{Name: name}
		d.logger.Warn("tool not found", "tool", name)
		return Outcome{Content: describe(err), IsError: true}
	}

	d.logger.Debug("invoking tool", "tool", name, "args", string(args))
	result, err := d.execute(ctx, tool, args)
	if err != nil {
		d.logger.Warn("tool failed", "tool", name, "error", err)
		return Outcome{Content: describe(err), IsError: true}
	}
	return Outcome{Content: result}
}

func (d *Dispatcher) execute(ctx context.Context, tool *Tool, args json.RawMessage) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{Tool: tool.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return tool.Execute(ctx, args)
}

// describe renders a dispatch failure as text for the model.
func describe(err error) string {
	var (
		failure  *Failure
		notFound *ToolNotFoundError
		invalid  *ValidationError
		exec     *ExecutionError
	)
	switch {
	case errors.As(err, &failure):
		return failure.Message
	case errors.As(err, &notFound):
		return "Error: " + notFound.Error()
	case errors.As(err, &invalid):
		return "Error: " + invalid.Error()
	case errors.As(err, &exec):
		return fmt.Sprintf("Error executing tool %s: %v", exec.Tool, exec.Err)
	default:
		return "Error: " + err.Error()
	}
}
