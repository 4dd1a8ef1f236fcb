package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/toolchat/internal/runtime"
	"github.com/user/toolchat/internal/runtime/tools"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := runtime.NewRegistry(tools.Builtin()...)
		if err != nil {
			return fmt.Errorf("register tools: %w", err)
		}
		out := cmd.OutOrStdout()
		for i, tool := range registry.All() {
			if i > 0 {
				fmt.Fprintln(out)
			}
			var schema bytes.Buffer
			if err := json.Indent(&schema, tool.InputSchema(), "  ", "  "); err != nil {
				return fmt.Errorf("format schema for %s: %w", tool.Name(), err)
			}
			fmt.Fprintf(out, "%s\n  %s\n  %s\n", tool.Name(), tool.Description(), schema.String())
		}
		return nil
	},
}
