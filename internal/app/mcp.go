package app

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/homepilot/internal/loop"
	"github.com/blackwell-systems/homepilot/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the live state over MCP stdio",
	Long: `Start a Model Context Protocol stdio server backed by a running control
loop. The server exposes three tools:

  current_state     Room, confidence, user state and polling interval
  generate_agenda   Build an agenda from the newest data (optional overrides)
  location_history  The recent room window

Register it with an MCP client, for example:
  {"mcpServers":{"homepilot":{"command":"homepilot","args":["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol, so logs must stay on stderr.
	logger := slog.Default()
	svc, err := openServices(logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r := loop.New(svc.gatherer, svc.engine, svc.planner, svc.pub, svc.sink, logger)
	go func() { _ = r.Run(ctx) }()

	srv := mcp.NewServer(svc.engine, svc.gatherer, svc.planner, appVersion)
	return srv.Run(ctx, os.Stdin, os.Stdout)
}
