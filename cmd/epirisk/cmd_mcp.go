package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epi-risk-server/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: `Starts a Model Context Protocol server over stdin/stdout exposing the
scoring pipeline as tools. Logs are written to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(bootOptions{stderrLogs: true, outcomes: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return mcp.NewServer(a.cfg.MCP, a.risk, a.outcomes, a.logger).Run(ctx)
}
