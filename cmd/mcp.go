/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeproj/forge/mcp"
)

// mcpCmd starts the stdio MCP server.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server for AI tool integration",
	Long: `Start a Model Context Protocol (MCP) server so external AI tools can
work with Forge projects: listing projects, documents, and tasks, creating
documents and tasks, and proposing reviewed document edits.

The server speaks MCP over stdin/stdout and runs until the client
disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()
		assistant, err := GetAssistant(ctx, st)
		if err != nil {
			return err
		}

		server := mcp.NewServer(st, assistant, version)
		if err := server.Run(ctx); err != nil {
			return fmt.Errorf("MCP server stopped: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
