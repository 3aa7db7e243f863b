package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adaptiveedge/forge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent client integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets agent clients create briefs, trigger pipelines, and inspect
results natively. Configure with:

  {
    "mcpServers": {
      "forge": { "command": "forge", "args": ["mcp"] }
    }
  }

Available tools: forge_list_projects, forge_list_briefs, forge_get_brief,
forge_create_brief, forge_start_pipeline, forge_approve_plan,
forge_request_revision, forge_brief_logs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		return mcp.NewServer(s).ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
