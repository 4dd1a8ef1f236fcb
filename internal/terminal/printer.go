package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
)

// Options configure a Printer.
type Options struct {
	AssistantLabel string
	Color          bool
	Markdown       bool
	Width          int
	Logger         *slog.Logger
}

// Printer writes the model's side of the conversation.
type Printer struct {
	out       io.Writer
	label     string
	user      *color.Color
	assistant *color.Color
	renderer  *glamour.TermRenderer
	logger    *slog.Logger
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, opts Options) (*Printer, error) {
	p := &Printer{
		out:       out,
		label:     opts.AssistantLabel,
		user:      color.New(color.FgHiBlue),
		assistant: color.New(color.FgHiYellow),
		logger:    opts.Logger,
	}
	if p.label == "" {
		p.label = "Claude"
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if !opts.Color {
		p.user.DisableColor()
		p.assistant.DisableColor()
	}

	if opts.Markdown {
		width := opts.Width
		if width <= 0 {
			width = 100
		}
		style := glamour.WithStandardStyle("notty")
		if opts.Color {
			style = glamour.WithStandardStyle("dark")
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		p.renderer = r
	}
	return p, nil
}

// UserLabel is the prompt shown before reading user input.
func (p *Printer) UserLabel() string {
	return p.user.Sprint("You") + ": "
}

// Banner prints the greeting shown once at startup.
func (p *Printer) Banner() {
	fmt.Fprintf(p.out, "Chat with %s (use 'ctrl-c' to quit)\n", p.label)
}

// AssistantText prints one text segment from the model.
func (p *Printer) AssistantText(text string) {
	if p.renderer != nil {
		rendered, err := p.renderer.Render(text)
		if err == nil {
			fmt.Fprintf(p.out, "%s:\n%s\n", p.assistant.Sprint(p.label), strings.Trim(rendered, "\n"))
			return
		}
		p.logger.Debug("markdown render failed", "error", err)
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.assistant.Sprint(p.label), text)
}

// ToolNotice announces a tool invocation.
func (p *Printer) ToolNotice(name string) {
	fmt.Fprintf(p.out, "%s is using tool: %s\n", p.assistant.Sprint(p.label), name)
}
