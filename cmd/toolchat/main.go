package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/toolchat/internal/config"
	ctxengine "github.com/user/toolchat/internal/context"
	"github.com/user/toolchat/internal/runtime"
	"github.com/user/toolchat/internal/runtime/tools"
	"github.com/user/toolchat/internal/terminal"
	"github.com/user/toolchat/internal/types"
	"github.com/user/toolchat/pkg/llm"
	"github.com/user/toolchat/pkg/llm/anthropic"
	"github.com/user/toolchat/pkg/llm/openai"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "toolchat",
	Short:         "Chat with a model that can list, read and write local files",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("toolchat failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	logger := slog.Default().With("session", string(types.NewSessionID()))

	registry, err := runtime.NewRegistry(tools.Builtin()...)
	if err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	system, err := ctxengine.BuildSystemPrompt(cfg.LLM.SystemPrompt, registry.Specs(), time.Now(), workDir)
	if err != nil {
		return fmt.Errorf("build system prompt: %w", err)
	}

	budget := newBudget(cfg, system, logger)

	provider := newProvider(cfg, system)
	if cfg.LLM.APIKey == "" {
		logger.Warn("no API key configured", "provider", cfg.LLM.Provider)
	}

	printer, err := terminal.NewPrinter(os.Stdout, terminal.Options{
		AssistantLabel: cfg.UI.AssistantLabel,
		Color:          cfg.UI.Color,
		Markdown:       cfg.UI.Markdown,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	prompt, err := terminal.NewPrompt(printer.UserLabel())
	if err != nil {
		return err
	}
	defer prompt.Close()

	rt := runtime.New(provider, registry, prompt, printer, runtime.Options{
		MaxToolRounds: cfg.MaxToolRounds,
		Budget:        budget,
		Logger:        logger,
	})

	logger.Debug("toolchat started",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"max_tool_rounds", cfg.MaxToolRounds,
		"tools", len(registry.All()),
	)
	printer.Banner()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		return rt.Run(gctx)
	})
	// A signal must also unblock the pending ReadLine.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			prompt.Close()
		case <-done:
		}
		return nil
	})
	return g.Wait()
}

// newBudget never fails: without a tokenizer the estimate is approximate.
func newBudget(cfg *config.Config, system string, logger *slog.Logger) *ctxengine.Budget {
	budget := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.MaxTokens)
	if err := budget.TokenizerErr(); err != nil {
		logger.Warn("tokenizer unavailable, estimating context size from characters", "error", err)
	}
	return budget.WithSystemPrompt(system)
}

func newProvider(cfg *config.Config, system string) llm.Provider {
	lc := &llm.Config{
		Provider:     cfg.LLM.Provider,
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		SystemPrompt: system,
	}
	if cfg.LLM.Provider == "openai" {
		return openai.New(lc)
	}
	return anthropic.New(lc)
}
