// Package cmd implements the memindex command-line interface (§4.15):
// sync, search, serve-mcp, and actor-lookup over the same memory.Manager
// the in-process tool surface and MCP server use.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the memindex root command.
func Execute() {
	root := &cobra.Command{
		Use:   "memindex",
		Short: "Hybrid memory index for a long-running conversational agent",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to ambient config in the workspace)")

	root.AddCommand(syncCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(serveMCPCmd())
	root.AddCommand(actorLookupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
