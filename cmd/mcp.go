package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/tasks/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients list and edit tasks. Configure a client with:

  {
    "mcpServers": {
      "tasks": { "command": "tasks", "args": ["mcp"] }
    }
  }

Available tools: tasks_list, tasks_get, tasks_create, tasks_update, tasks_delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		src, err := taskSource(s)
		if err != nil {
			return err
		}
		return mcp.NewServer(s, src, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
