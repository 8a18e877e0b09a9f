package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mimus-sim/mimus/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the platform to agents over MCP stdio",
		Long: `Start the simulation engine and expose every platform action as an
MCP tool over stdio. Agents identify themselves per call with an
agent_id, so any number of agents can share one server process.

The engine drains in-flight actions and closes the store when the
client disconnects or the process receives SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := startEngine(ctx, cfg)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(&mcp.Config{
				Name:    "mimus",
				Version: version,
			}, e.ch)

			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}

			// The server already drained the platform with an Exit.
			return <-e.done
		},
	}
}
