// Package terminal implements the interactive side of the chat: a line
// prompt on stdin and a printer for the model's output.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/readline"
)

// Prompt reads user lines with line editing. Ctrl-C and Ctrl-D both end the
// session.
type Prompt struct {
	rl        *readline.Instance
	closeOnce sync.Once
	closeErr  error
}

// NewPrompt creates a prompt on the process's stdin/stdout that shows label
// before each line.
func NewPrompt(label string) (*Prompt, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          label,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
		Stdin:           readline.NewCancelableStdin(os.Stdin),
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}
	return &Prompt{rl: rl}, nil
}

// ReadLine blocks for one line. It returns io.EOF when the input is closed,
// interrupted, or the prompt has been closed.
func (p *Prompt) ReadLine() (string, error) {
	line, err := p.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	return line, err
}

// Close releases the terminal and unblocks a pending ReadLine. It is safe to
// call more than once.
func (p *Prompt) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.rl.Close()
	})
	return p.closeErr
}
